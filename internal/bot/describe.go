package bot

import (
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"remindbot/internal/sweep"
	"remindbot/pkg/remind"
	"remindbot/pkg/tgui"
)

// DescribeRule renders a rule for display, naming weekdays in the catalog's
// language. The empty rule is "once".
func DescribeRule(rule remind.Rule, cat *remind.Catalog) string {
	if rule.Empty() {
		return "once"
	}
	var parts []string
	if d, ok := rule.Interval(); ok {
		parts = append(parts, "every "+sweep.ShortDuration(d))
	}
	var units []string
	for _, tok := range []remind.RepeatToken{remind.EveryYear, remind.EveryMonth, remind.EveryWeek, remind.EveryDay} {
		if rule.Has(tok) {
			units = append(units, tok.String())
		}
	}
	if len(units) > 0 {
		parts = append(parts, "every "+strings.Join(units, " + "))
	}
	if wds := rule.Weekdays(); len(wds) > 0 {
		names := make([]string, len(wds))
		for i, wd := range wds {
			names[i] = cat.WeekdayLabel(wd)
		}
		parts = append(parts, "on "+strings.Join(names, ", "))
	}
	return strings.Join(parts, "; ")
}

// Callback data of the repeat picker: rep:tog:<token>, rep:once, rep:save.
const (
	nsRepeat  = "rep"
	actToggle = "tog"
	actOnce   = "once"
	actSave   = "save"
)

func tokenLabel(tok remind.RepeatToken, cat *remind.Catalog) string {
	if wd, ok := tok.Weekday(); ok {
		rs := []rune(cat.WeekdayLabel(wd))
		return string(rs[:min(3, len(rs))])
	}
	return tok.String()
}

// repeatKeyboard lays out every repeat token as a toggle button, marking the
// ones set in rule.
func repeatKeyboard(rule remind.Rule, cat *remind.Catalog) *tgui.Inline {
	var minutes, hours, weekdays, units []tele.Btn
	for _, tok := range remind.AllRepeatTokens() {
		label := tokenLabel(tok, cat)
		if rule.Has(tok) {
			label = "✓" + label
		}
		btn := tgui.Btn(label, tgui.Data(nsRepeat, actToggle, strconv.Itoa(int(tok))))
		d, isInterval := tok.Interval()
		switch {
		case isInterval && d < time.Hour:
			minutes = append(minutes, btn)
		case isInterval:
			hours = append(hours, btn)
		case tok.IsWeekday():
			weekdays = append(weekdays, btn)
		default:
			units = append(units, btn)
		}
	}
	return tgui.NewInline().
		Row(minutes...).
		Row(hours...).
		Grid(4, weekdays...).
		Row(units...).
		Row(tgui.Btn("Once", tgui.Data(nsRepeat, actOnce, "")), tgui.Btn("💾 Save", tgui.Data(nsRepeat, actSave, "")))
}
