package dashboard

import (
	"testing"
	"time"

	"golang.org/x/text/language"
)

var wib = time.FixedZone("WIB", 7*60*60)

func fixedFormatter(now time.Time) *TimeFormatter {
	f := NewTimeFormatter(wib)
	f.now = func() time.Time { return now }
	return f
}

func TestTimeFormatter_Relative_Indonesian(t *testing.T) {
	now := time.Date(2026, 1, 20, 12, 0, 0, 0, wib)
	f := fixedFormatter(now)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"just now", now.Add(-59 * time.Second), "Baru saja"},
		{"future counts as just now", now.Add(5 * time.Minute), "Baru saja"},
		{"one minute", now.Add(-60 * time.Second), "1 menit yang lalu"},
		{"minutes floor", now.Add(-(59*time.Minute + 59*time.Second)), "59 menit yang lalu"},
		{"hours", now.Add(-3 * time.Hour), "3 jam yang lalu"},
		{"23 hours", now.Add(-(23*time.Hour + 59*time.Minute)), "23 jam yang lalu"},
		{"days", now.Add(-2 * 24 * time.Hour), "2 hari yang lalu"},
		{"six days", now.Add(-(6*24*time.Hour + 23*time.Hour)), "6 hari yang lalu"},
		{"absolute after a week", time.Date(2026, 1, 13, 14, 33, 0, 0, wib), "13 Jan 2026, 14.33"},
		{"indonesian month name", time.Date(2025, 5, 4, 9, 5, 0, 0, wib), "04 Mei 2025, 09.05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Relative(language.Indonesian, tt.at); got != tt.want {
				t.Errorf("Relative() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTimeFormatter_Relative_English(t *testing.T) {
	now := time.Date(2026, 1, 20, 12, 0, 0, 0, wib)
	f := fixedFormatter(now)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"just now", now.Add(-10 * time.Second), "just now"},
		{"singular minute", now.Add(-time.Minute), "1 minute ago"},
		{"plural minutes", now.Add(-10 * time.Minute), "10 minutes ago"},
		{"singular hour", now.Add(-time.Hour), "1 hour ago"},
		{"plural days", now.Add(-3 * 24 * time.Hour), "3 days ago"},
		{"absolute keeps english month", time.Date(2025, 5, 4, 9, 5, 0, 0, wib), "04 May 2025, 09:05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Relative(language.English, tt.at); got != tt.want {
				t.Errorf("Relative() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTimeFormatter_AbsoluteUsesConfiguredZone(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	f := fixedFormatter(now)

	// 2026-01-13 20:00 UTC は WIB で 1月14日 03:00
	at := time.Date(2026, 1, 13, 20, 0, 0, 0, time.UTC)
	if got := f.Relative(language.Indonesian, at); got != "14 Jan 2026, 03.00" {
		t.Errorf("Relative() = %q", got)
	}
}

func TestTimeFormatter_SessionTitle(t *testing.T) {
	f := NewTimeFormatter(wib)
	at := time.Date(2026, 1, 14, 7, 3, 0, 0, time.UTC)

	if got := f.SessionTitle(language.Indonesian, at); got != "Session 14/1/2026, 14.03" {
		t.Errorf("SessionTitle(id) = %q", got)
	}
	if got := f.SessionTitle(language.English, at); got != "Session 14/1/2026, 14:03" {
		t.Errorf("SessionTitle(en) = %q", got)
	}
}

func TestResolveLocale(t *testing.T) {
	tests := []struct {
		header string
		want   language.Tag
	}{
		{"", language.Indonesian},
		{"en-US,en;q=0.9", language.English},
		{"id-ID,id;q=0.9,en;q=0.8", language.Indonesian},
		{"ja-JP", language.Indonesian},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			if got := ResolveLocale(tt.header, language.Indonesian); got != tt.want {
				t.Errorf("ResolveLocale(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}
