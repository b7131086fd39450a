// Package onboarding defines the couple questionnaire, answer validation,
// step navigation and the derived couple profile.
package onboarding

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// QuestionType is how an answer is entered and validated.
type QuestionType string

const (
	TypeText         QuestionType = "text"
	TypeNumber       QuestionType = "number"
	TypeDate         QuestionType = "date"
	TypeSingleChoice QuestionType = "single_choice"
	TypeMultiChoice  QuestionType = "multi_choice"
	TypeBool         QuestionType = "bool"
)

func (t QuestionType) valid() bool {
	switch t {
	case TypeText, TypeNumber, TypeDate, TypeSingleChoice, TypeMultiChoice, TypeBool:
		return true
	}
	return false
}

func (t QuestionType) choice() bool {
	return t == TypeSingleChoice || t == TypeMultiChoice
}

// DateLayout is the accepted date answer format.
const DateLayout = "2006-01-02"

// Question is one prompt in a step. Min and Max bound numbers, text length
// and the number of multi_choice selections.
type Question struct {
	ID       string       `yaml:"id" json:"id"`
	Prompt   string       `yaml:"prompt" json:"prompt"`
	Type     QuestionType `yaml:"type" json:"type"`
	Options  []string     `yaml:"options,omitempty" json:"options,omitempty"`
	Required bool         `yaml:"required" json:"required"`
	Min      *float64     `yaml:"min,omitempty" json:"min,omitempty"`
	Max      *float64     `yaml:"max,omitempty" json:"max,omitempty"`
}

// SkipIf skips a step when an earlier answer equals a value.
type SkipIf struct {
	Question string `yaml:"question" json:"question"`
	Equals   string `yaml:"equals" json:"equals"`
}

// Step groups questions answered together.
type Step struct {
	ID        string     `yaml:"id" json:"id"`
	Title     string     `yaml:"title" json:"title"`
	Questions []Question `yaml:"questions" json:"questions"`
	SkipIf    *SkipIf    `yaml:"skip_if,omitempty" json:"skip_if,omitempty"`
}

// Questionnaire is the ordered list of onboarding steps.
type Questionnaire struct {
	Version string `yaml:"version" json:"version"`
	Steps   []Step `yaml:"steps" json:"steps"`

	stepIndex map[string]int
	questions map[string]Question
}

// Parse decodes and validates a YAML questionnaire.
func Parse(data []byte) (*Questionnaire, error) {
	var q Questionnaire
	if err := yaml.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("parse questionnaire: %w", err)
	}
	if err := q.index(); err != nil {
		return nil, err
	}
	return &q, nil
}

func (q *Questionnaire) index() error {
	if len(q.Steps) == 0 {
		return errors.New("questionnaire has no steps")
	}
	q.stepIndex = make(map[string]int, len(q.Steps))
	q.questions = make(map[string]Question)
	for i, s := range q.Steps {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("step %d has no id", i)
		}
		if s.ID == StepReview {
			return fmt.Errorf("step id %q is reserved", StepReview)
		}
		if _, dup := q.stepIndex[s.ID]; dup {
			return fmt.Errorf("duplicate step %q", s.ID)
		}
		if len(s.Questions) == 0 {
			return fmt.Errorf("step %q has no questions", s.ID)
		}
		if s.SkipIf != nil {
			if _, ok := q.questions[s.SkipIf.Question]; !ok {
				return fmt.Errorf("step %q skip_if must reference an earlier question, got %q", s.ID, s.SkipIf.Question)
			}
		}
		q.stepIndex[s.ID] = i
		for _, qu := range s.Questions {
			switch {
			case strings.TrimSpace(qu.ID) == "":
				return fmt.Errorf("step %q has a question without id", s.ID)
			case !qu.Type.valid():
				return fmt.Errorf("question %q has unknown type %q", qu.ID, qu.Type)
			case qu.Type.choice() && len(qu.Options) == 0:
				return fmt.Errorf("question %q needs options", qu.ID)
			case qu.Min != nil && qu.Max != nil && *qu.Min > *qu.Max:
				return fmt.Errorf("question %q has min above max", qu.ID)
			}
			if _, dup := q.questions[qu.ID]; dup {
				return fmt.Errorf("duplicate question %q", qu.ID)
			}
			q.questions[qu.ID] = qu
		}
	}
	return nil
}

// Step returns a step by ID.
func (q *Questionnaire) Step(id string) (Step, bool) {
	i, ok := q.stepIndex[id]
	if !ok {
		return Step{}, false
	}
	return q.Steps[i], true
}

// Skipped reports whether a step is skipped under answers.
func (q *Questionnaire) Skipped(s Step, answers map[string]interface{}) bool {
	if s.SkipIf == nil {
		return false
	}
	v, ok := answers[s.SkipIf.Question]
	if !ok {
		return false
	}
	return strings.EqualFold(fmt.Sprint(v), s.SkipIf.Equals)
}

// First returns the first step that is not skipped.
func (q *Questionnaire) First(answers map[string]interface{}) string {
	return q.forward(-1, answers)
}

// forward finds the next non-skipped step after index i, or StepReview.
func (q *Questionnaire) forward(i int, answers map[string]interface{}) string {
	for j := i + 1; j < len(q.Steps); j++ {
		if !q.Skipped(q.Steps[j], answers) {
			return q.Steps[j].ID
		}
	}
	return StepReview
}

// backward finds the previous non-skipped step before index i.
func (q *Questionnaire) backward(i int, answers map[string]interface{}) (string, bool) {
	for j := i - 1; j >= 0; j-- {
		if !q.Skipped(q.Steps[j], answers) {
			return q.Steps[j].ID, true
		}
	}
	return "", false
}

// Active lists the steps that are not skipped, in order.
func (q *Questionnaire) Active(answers map[string]interface{}) []Step {
	out := make([]Step, 0, len(q.Steps))
	for _, s := range q.Steps {
		if !q.Skipped(s, answers) {
			out = append(out, s)
		}
	}
	return out
}

// Missing lists required questions without answers in non-skipped steps.
func (q *Questionnaire) Missing(answers map[string]interface{}) []string {
	var out []string
	for _, s := range q.Active(answers) {
		for _, qu := range s.Questions {
			if !qu.Required {
				continue
			}
			if _, ok := answers[qu.ID]; !ok {
				out = append(out, qu.ID)
			}
		}
	}
	return out
}

// StepReview is the position after the last step.
const StepReview = "review"

var (
	ErrWrongStep   = errors.New("step is not the current step")
	ErrAtFirstStep = errors.New("already at the first step")
	ErrCompleted   = errors.New("onboarding is already complete")
)

// FieldError reports an invalid answer.
type FieldError struct {
	Field string
	Msg   string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Msg
}

// MissingAnswersError lists required questions still unanswered.
type MissingAnswersError struct {
	Questions []string
}

func (e *MissingAnswersError) Error() string {
	return "missing required answers: " + strings.Join(e.Questions, ", ")
}

// Progress is a user's position in the questionnaire.
type Progress struct {
	UserID      string                 `json:"user_id"`
	CurrentStep string                 `json:"current_step"`
	Answers     map[string]interface{} `json:"answers"`
	Completed   bool                   `json:"completed"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// Start returns fresh progress for a user.
func (q *Questionnaire) Start(userID string, now time.Time) *Progress {
	answers := map[string]interface{}{}
	return &Progress{UserID: userID, CurrentStep: q.First(answers), Answers: answers, UpdatedAt: now}
}

// Answer validates answers for the current step, stores them and advances
// to the next non-skipped step.
func (q *Questionnaire) Answer(p *Progress, stepID string, answers map[string]interface{}, now time.Time) error {
	if p.Completed {
		return ErrCompleted
	}
	if stepID != p.CurrentStep {
		return fmt.Errorf("%w: expected %q, got %q", ErrWrongStep, p.CurrentStep, stepID)
	}
	i, ok := q.stepIndex[stepID]
	if !ok {
		return fmt.Errorf("%w: unknown step %q", ErrWrongStep, stepID)
	}
	clean, err := ValidateStep(q.Steps[i], answers)
	if err != nil {
		return err
	}
	if p.Answers == nil {
		p.Answers = map[string]interface{}{}
	}
	for _, qu := range q.Steps[i].Questions {
		delete(p.Answers, qu.ID)
	}
	for k, v := range clean {
		p.Answers[k] = v
	}
	p.CurrentStep = q.forward(i, p.Answers)
	p.UpdatedAt = now
	return nil
}

// Back moves to the previous non-skipped step.
func (q *Questionnaire) Back(p *Progress, now time.Time) error {
	if p.Completed {
		return ErrCompleted
	}
	i := len(q.Steps)
	if p.CurrentStep != StepReview {
		idx, ok := q.stepIndex[p.CurrentStep]
		if !ok {
			return fmt.Errorf("%w: unknown step %q", ErrWrongStep, p.CurrentStep)
		}
		i = idx
	}
	prev, ok := q.backward(i, p.Answers)
	if !ok {
		return ErrAtFirstStep
	}
	p.CurrentStep = prev
	p.UpdatedAt = now
	return nil
}

// Complete checks every non-skipped required question is answered, marks
// progress complete and derives the couple profile.
func (q *Questionnaire) Complete(p *Progress, now time.Time) (*CoupleProfile, error) {
	if missing := q.Missing(p.Answers); len(missing) > 0 {
		return nil, &MissingAnswersError{Questions: missing}
	}
	profile := DeriveProfile(p.UserID, p.Answers, now)
	p.Completed = true
	p.CurrentStep = StepReview
	p.UpdatedAt = now
	return profile, nil
}
