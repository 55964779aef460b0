package bot

import (
	"strings"
	"time"

	"remindbot/internal/transport"
	"remindbot/pkg/remind"
)

// Stage is the position of a dialog in the chained-edit state machine:
//
//	AwaitingDate -> AwaitingTime -> AwaitingRepeat -> Done
//
// AwaitingTime is skipped when the date answer already carried a time, and
// /repeat starts directly at AwaitingRepeat.
type Stage int

const (
	StageAwaitingDate Stage = iota + 1
	StageAwaitingTime
	StageAwaitingRepeat
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageAwaitingDate:
		return "awaiting_date"
	case StageAwaitingTime:
		return "awaiting_time"
	case StageAwaitingRepeat:
		return "awaiting_repeat"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

type mode int

const (
	modeCreate mode = iota
	modeEdit
	modeRepeat
)

// keepAnswer leaves the current date or time unchanged.
const keepAnswer = "-"

type sessionKey struct {
	chat int64
	user int64
}

type session struct {
	stage    Stage
	mode     mode
	id       string // record being edited; empty when creating
	text     string
	sched    remind.Schedule
	keyboard transport.MessageRef
}

func newCreateSession(text string) *session {
	return &session{stage: StageAwaitingDate, mode: modeCreate, text: text}
}

func newEditSession(id, text string, sched remind.Schedule) *session {
	return &session{stage: StageAwaitingDate, mode: modeEdit, id: id, text: text, sched: sched}
}

func newRepeatSession(id, text string, sched remind.Schedule) *session {
	return &session{stage: StageAwaitingRepeat, mode: modeRepeat, id: id, text: text, sched: sched}
}

// answerDate consumes the reply to the date question. The stage does not
// move on error so the user can answer again.
func (s *session) answerDate(input string, now time.Time, loc *time.Location, cat *remind.Catalog) error {
	input = strings.TrimSpace(input)
	if input == keepAnswer {
		if s.mode == modeCreate {
			return userError("There is no date to keep yet. Send a date such as 25.12, tomorrow or 3.")
		}
		s.stage = StageAwaitingTime
		return nil
	}
	res, err := remind.Resolve(input, now, loc, cat)
	if err != nil {
		return err
	}
	s.sched = s.sched.Apply(res)
	if res.HasTime {
		s.stage = StageAwaitingRepeat
		return nil
	}
	s.stage = StageAwaitingTime
	return nil
}

// answerTime consumes the reply to the time question. Only the time of day
// is taken from the answer; the date chosen before stays.
func (s *session) answerTime(input string, now time.Time, loc *time.Location, cat *remind.Catalog) error {
	input = strings.TrimSpace(input)
	if input == keepAnswer {
		if s.mode == modeCreate {
			s.sched.Trigger.Time = remind.Midnight
		}
		s.stage = StageAwaitingRepeat
		return nil
	}
	res, err := remind.Resolve(input, now, loc, cat)
	if err != nil {
		return err
	}
	if !res.HasTime {
		return userError("That is a date, not a time. Send a time such as 18:30 or evening.")
	}
	s.sched = s.sched.Apply(remind.Resolution{Time: res.Time, HasTime: true})
	s.stage = StageAwaitingRepeat
	return nil
}

func (s *session) toggle(tok remind.RepeatToken) {
	s.sched.Repeat = s.sched.Repeat.Toggle(tok)
}

func (s *session) once() {
	s.sched.Repeat = 0
}
