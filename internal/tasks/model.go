// Package tasks tracks work items assigned to team members.
package tasks

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("task not found")
	ErrInvalid  = errors.New("invalid task")
)

// StatusDone marks a task complete and stamps its completion date.
const StatusDone = "DONE"

type Task struct {
	ID             int64      `json:"id"`
	MemberID       int64      `json:"memberId"`
	MemberName     string     `json:"memberName"`
	Task           string     `json:"task"`
	StatusCode     string     `json:"statusCode"`
	ProductCode    *string    `json:"productCode,omitempty"`
	Application    *string    `json:"application,omitempty"`
	ManHours       *float64   `json:"manHours,omitempty"`
	JiraTicket     *string    `json:"jiraTicket,omitempty"`
	TaskDate       time.Time  `json:"taskDate"`
	StartDate      *time.Time `json:"startDate,omitempty"`
	EndDate        *time.Time `json:"endDate,omitempty"`
	CompletionDate *time.Time `json:"completionDate,omitempty"`
	IsCompleted    bool       `json:"isCompleted"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Patch is the create/update form. Dates use YYYY-MM-DD.
type Patch struct {
	MemberID       *int64     `form:"memberId" json:"memberId"`
	Task           *string    `form:"task" json:"task"`
	StatusCode     *string    `form:"statusCode" json:"statusCode"`
	ProductCode    *string    `form:"productCode" json:"productCode"`
	Application    *string    `form:"application" json:"application"`
	ManHours       *float64   `form:"manHours" json:"manHours"`
	JiraTicket     *string    `form:"jiraTicket" json:"jiraTicket"`
	TaskDate       *time.Time `form:"taskDate" time_format:"2006-01-02" json:"taskDate"`
	StartDate      *time.Time `form:"startDate" time_format:"2006-01-02" json:"startDate"`
	EndDate        *time.Time `form:"endDate" time_format:"2006-01-02" json:"endDate"`
	CompletionDate *time.Time `form:"completionDate" time_format:"2006-01-02" json:"completionDate"`
}

func (p *Patch) Validate(create bool) error {
	if create && (p.MemberID == nil || p.Task == nil || p.StatusCode == nil) {
		return fmt.Errorf("%w: memberId, task and statusCode are required", ErrInvalid)
	}
	if p.Task != nil {
		s := strings.TrimSpace(*p.Task)
		if s == "" {
			return fmt.Errorf("%w: task is empty", ErrInvalid)
		}
		p.Task = &s
	}
	if p.StatusCode != nil {
		s := strings.ToUpper(strings.TrimSpace(*p.StatusCode))
		p.StatusCode = &s
	}
	if p.ProductCode != nil {
		s := strings.ToUpper(strings.TrimSpace(*p.ProductCode))
		p.ProductCode = &s
	}
	if p.ManHours != nil && *p.ManHours < 0 {
		return fmt.Errorf("%w: man hours must be >= 0", ErrInvalid)
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return fmt.Errorf("%w: end date is before start date", ErrInvalid)
	}
	if p.StatusCode != nil && *p.StatusCode == StatusDone && p.CompletionDate == nil {
		today := time.Now().UTC().Truncate(24 * time.Hour)
		p.CompletionDate = &today
	}
	return nil
}

var exportHeader = []string{
	"Task Date", "Task", "Status", "Product", "Application", "Man Hours", "Jira Ticket",
	"Start Date", "End Date", "Completion Date",
}

// WriteCSV renders a member's tasks as a spreadsheet-friendly CSV.
func WriteCSV(w io.Writer, tasks []Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, t := range tasks {
		rec := []string{
			t.TaskDate.Format(time.DateOnly), t.Task, t.StatusCode, str(t.ProductCode), str(t.Application),
			"", str(t.JiraTicket), date(t.StartDate), date(t.EndDate), date(t.CompletionDate),
		}
		if t.ManHours != nil {
			rec[5] = strconv.FormatFloat(*t.ManHours, 'f', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
