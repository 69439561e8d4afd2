package dashboard

import (
	"strconv"
	"time"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// 対応ロケール。先頭が既定。
var supportedLocales = []language.Tag{language.Indonesian, language.English}

var localeMatcher = language.NewMatcher(supportedLocales)

// メッセージキー。英語の文言をキーにする。
// 年や日付の数値はPrinterの桁区切りを避けるため文字列で渡す。
const (
	keyJustNow  = "just now"
	keyMinutes  = "%d minutes ago"
	keyHours    = "%d hours ago"
	keyDays     = "%d days ago"
	keyAbsolute = "%s %s %s, %s:%s"
	keyTitle    = "Session %s/%s/%s, %s:%s"
)

var indonesianMonths = [...]string{"Jan", "Feb", "Mar", "Apr", "Mei", "Jun", "Jul", "Agu", "Sep", "Okt", "Nov", "Des"}

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.Indonesian))

	id := language.Indonesian
	b.SetString(id, keyJustNow, "Baru saja")
	b.SetString(id, keyMinutes, "%d menit yang lalu")
	b.SetString(id, keyHours, "%d jam yang lalu")
	b.SetString(id, keyDays, "%d hari yang lalu")
	b.SetString(id, keyAbsolute, "%s %s %s, %s.%s")
	b.SetString(id, keyTitle, "Session %s/%s/%s, %s.%s")
	for i, m := range indonesianMonths {
		b.SetString(id, time.Month(i + 1).String()[:3], m)
	}

	en := language.English
	b.SetString(en, keyJustNow, "just now")
	b.Set(en, keyMinutes, plural.Selectf(1, "%d",
		plural.One, "%d minute ago",
		plural.Other, "%d minutes ago"))
	b.Set(en, keyHours, plural.Selectf(1, "%d",
		plural.One, "%d hour ago",
		plural.Other, "%d hours ago"))
	b.Set(en, keyDays, plural.Selectf(1, "%d",
		plural.One, "%d day ago",
		plural.Other, "%d days ago"))
	b.SetString(en, keyAbsolute, keyAbsolute)
	b.SetString(en, keyTitle, keyTitle)
	for i := range indonesianMonths {
		m := time.Month(i + 1).String()[:3]
		b.SetString(en, m, m)
	}

	return b
}

// ResolveLocale はAccept-Languageヘッダーから対応ロケールを選ぶ。
// ヘッダーが空か解釈できない場合、または対応ロケールに一致しない場合はfallbackを使う。
func ResolveLocale(acceptLanguage string, fallback language.Tag) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, conf := localeMatcher.Match(tags...)
	if conf == language.No {
		return fallback
	}
	return supportedLocales[idx]
}

// TimeFormatter は履歴の作成日時を画面表示用の文字列にする。
type TimeFormatter struct {
	cat catalog.Catalog
	loc *time.Location
	now func() time.Time
}

// NewTimeFormatter はTimeFormatterを生成する。locがnilの場合はUTC。
func NewTimeFormatter(loc *time.Location) *TimeFormatter {
	if loc == nil {
		loc = time.UTC
	}
	return &TimeFormatter{cat: newCatalog(), loc: loc, now: time.Now}
}

func (f *TimeFormatter) printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(f.cat))
}

// Relative は現在時刻からの経過を表すラベルを返す。
// 60秒未満（未来の時刻を含む）は「たった今」、7日以上は日付と時刻。
func (f *TimeFormatter) Relative(tag language.Tag, t time.Time) string {
	p := f.printer(tag)

	seconds := int(f.now().Sub(t) / time.Second)
	if seconds < 60 {
		return p.Sprintf(keyJustNow)
	}
	minutes := seconds / 60
	if minutes < 60 {
		return p.Sprintf(keyMinutes, minutes)
	}
	hours := minutes / 60
	if hours < 24 {
		return p.Sprintf(keyHours, hours)
	}
	days := hours / 24
	if days < 7 {
		return p.Sprintf(keyDays, days)
	}

	local := t.In(f.loc)
	month := p.Sprintf(local.Month().String()[:3])
	return p.Sprintf(keyAbsolute, pad2(local.Day()), month, strconv.Itoa(local.Year()), pad2(local.Hour()), pad2(local.Minute()))
}

// SessionTitle はプレビューの見出しを返す。例: "Session 14/1/2026, 14.33"
func (f *TimeFormatter) SessionTitle(tag language.Tag, t time.Time) string {
	local := t.In(f.loc)
	return f.printer(tag).Sprintf(keyTitle,
		strconv.Itoa(local.Day()), strconv.Itoa(int(local.Month())), strconv.Itoa(local.Year()),
		pad2(local.Hour()), pad2(local.Minute()))
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
