// internal/wizard/step.go
package wizard

import "fmt"

// Step is a wizard state. Steps are strictly ordered and Completed is
// terminal.
type Step int

const (
	StepPersonalInfo Step = iota
	StepCategoryDetails
	StepDocumentSelection
	StepReviewAndConfirm
	StepCompleted
)

var stepNames = [...]string{
	StepPersonalInfo:      "personal_info",
	StepCategoryDetails:   "category_details",
	StepDocumentSelection: "document_selection",
	StepReviewAndConfirm:  "review_and_confirm",
	StepCompleted:         "completed",
}

func (s Step) String() string {
	if s < StepPersonalInfo || s > StepCompleted {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// Number is the 1-based position shown to the user.
func (s Step) Number() int {
	return int(s) + 1
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(text []byte) error {
	for i, name := range stepNames {
		if name == string(text) {
			*s = Step(i)
			return nil
		}
	}
	return fmt.Errorf("unknown wizard step %q", text)
}
