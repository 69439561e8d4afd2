package model

import "time"

// Role はプロフィールのロール（要約モード）を表す。
type Role string

const (
	// RolePathologist は病理医。
	RolePathologist Role = "patologi"
	// RoleVeterinarian は獣医師。
	RoleVeterinarian Role = "dokter_hewan"
)

// Valid はロールが定義済みの列挙値かどうかを判定する。
func (r Role) Valid() bool {
	return r == RolePathologist || r == RoleVeterinarian
}

// Label は画面表示用のロール名を返す。未設定や不明な値は "User"。
func (r Role) Label() string {
	switch r {
	case RolePathologist:
		return "Pathologist"
	case RoleVeterinarian:
		return "Veterinarian"
	default:
		return "User"
	}
}

// Profile はprofilesテーブルの行を表す。ユーザーIDごとに最大1行。
type Profile struct {
	ID        string
	FullName  string
	Role      Role // 未設定の場合は空文字
	UpdatedAt time.Time
}
