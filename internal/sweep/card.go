package sweep

import (
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"remindbot/internal/storage"
	"remindbot/pkg/remind"
	"remindbot/pkg/tgui"
)

// Callback data of the buttons under a fired reminder:
//
//	rmd:snz:<seconds>:<id>   postpone by <seconds>
//	rmd:done:<id>            acknowledge
const (
	CallbackNS     = "rmd"
	ActionPostpone = "snz"
	ActionDone     = "done"
)

func PostponeData(id string, d time.Duration) string {
	return tgui.Data(CallbackNS, ActionPostpone, strconv.FormatInt(int64(d/time.Second), 10)+":"+id)
}

func DoneData(id string) string {
	return tgui.Data(CallbackNS, ActionDone, id)
}

// ParsePostponePayload splits the payload of a postpone button.
func ParsePostponePayload(payload string) (id string, d time.Duration, ok bool) {
	secs, id, found := strings.Cut(payload, ":")
	if !found || id == "" {
		return "", 0, false
	}
	n, err := strconv.ParseInt(secs, 10, 64)
	if err != nil || n <= 0 {
		return "", 0, false
	}
	return id, time.Duration(n) * time.Second, true
}

// ShortDuration renders d without zero trailing units ("15m", "1h", "1h30m").
func ShortDuration(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = s[:len(s)-2]
	}
	if strings.HasSuffix(s, "h0m") {
		s = s[:len(s)-2]
	}
	return s
}

// Card renders the message sent when r fires. next is the re-armed trigger of
// a repeating reminder.
func Card(r storage.Reminder, next *remind.Trigger, postpone []time.Duration) tgui.Message {
	b := tgui.New().Title("⏰", "Reminder").Line(r.Text)
	if next != nil {
		b.Blank().HTML(tgui.JoinH(" ", tgui.I("next:"), tgui.Code(next.String())))
	}
	btns := make([]tele.Btn, 0, len(postpone))
	for _, d := range postpone {
		btns = append(btns, tgui.Btn("+"+ShortDuration(d), PostponeData(r.ID, d)))
	}
	kb := tgui.NewInline().Grid(4, btns...).Row(tgui.Btn("✅ Done", DoneData(r.ID)))
	return b.Inline(kb).Build()
}
