package runtime

import (
	"errors"
	"fmt"
)

// Handler runs one payload kind.
type Handler[P Payload] interface {
	Run(c *Context, p P) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[P Payload] func(c *Context, p P) (any, error)

func (f HandlerFunc[P]) Run(c *Context, p P) (any, error) { return f(c, p) }

// Handlers has one field per payload kind; every field is required.
type Handlers struct {
	AssetGenerate  Handler[AssetGenerate]
	ReportGenerate Handler[ReportGenerate]
	ReminderSend   Handler[ReminderSend]
}

// Validate reports every missing handler.
func (h Handlers) Validate() error {
	var errs []error
	if h.AssetGenerate == nil {
		errs = append(errs, fmt.Errorf("no handler for job_type=%s", JobTypeAssetGenerate))
	}
	if h.ReportGenerate == nil {
		errs = append(errs, fmt.Errorf("no handler for job_type=%s", JobTypeReportGenerate))
	}
	if h.ReminderSend == nil {
		errs = append(errs, fmt.Errorf("no handler for job_type=%s", JobTypeReminderSend))
	}
	return errors.Join(errs...)
}

// Dispatch decodes the job payload and runs the matching handler. A payload
// that cannot be decoded is a permanent failure.
func (h Handlers) Dispatch(c *Context) (any, error) {
	p, err := Decode(c.Job.JobType, c.Job.Payload)
	if err != nil {
		return nil, Permanent(err)
	}
	c.payload = p
	switch v := p.(type) {
	case AssetGenerate:
		return h.AssetGenerate.Run(c, v)
	case ReportGenerate:
		return h.ReportGenerate.Run(c, v)
	case ReminderSend:
		return h.ReminderSend.Run(c, v)
	}
	return nil, Permanent(fmt.Errorf("unhandled payload %T", p))
}
