package risk

import "fmt"

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

func (d Decision) String() string {
	if d.Allowed {
		return "allowed"
	}
	s := ""
	for i, v := range d.Violations {
		if i > 0 {
			s += "; "
		}
		s += v.Code + ": " + v.Msg
	}
	return s
}

// Evaluate decides whether a new entry may be submitted after a risk pass.
func Evaluate(l Limits, r Report) Decision {
	d := Decision{Allowed: true}

	if r.Halted {
		d.add("DAILY_LOSS_LIMIT",
			fmt.Sprintf("trading halted, day realized %.2f", r.DailyPL))
	}
	if l.MaxConcurrent > 0 && len(r.Open) >= l.MaxConcurrent {
		d.add("TOO_MANY_OPEN_POSITIONS",
			fmt.Sprintf("open positions %d >= max %d", len(r.Open), l.MaxConcurrent))
	}
	return d
}
