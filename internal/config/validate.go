package config

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Validation range constants.
const (
	maxPageSize = 1000 // Drive files.list upper bound
	maxRootKey  = 64
)

// Validate checks all configuration values and returns all errors found, so
// users can fix every issue in one pass.
func Validate(cfg *Config) error {
	var errs []error

	err := validation.ValidateStruct(cfg,
		validation.Field(&cfg.DataDir, validation.Required),
		validation.Field(&cfg.PageSize, validation.Required, validation.Min(1), validation.Max(maxPageSize)),
		validation.Field(&cfg.MaxDepth, validation.Min(0)),
		validation.Field(&cfg.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&cfg.LogFormat, validation.In("auto", "text", "json")),
		validation.Field(&cfg.ScheduleWeekday, validation.By(checkWeekday)),
		validation.Field(&cfg.ScheduleTime, validation.By(checkClock)),
		validation.Field(&cfg.Roots, validation.Required),
	)
	if err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, validateRoots(cfg.Roots)...)

	return errors.Join(errs...)
}

func validateRoots(roots []Root) []error {
	var errs []error

	keys := make(map[string]bool, len(roots))
	ids := make(map[string]bool, len(roots))

	for i := range roots {
		r := &roots[i]

		err := validation.ValidateStruct(r,
			validation.Field(&r.Key, validation.Required, validation.Length(1, maxRootKey)),
			validation.Field(&r.ID, validation.Required),
		)
		if err != nil {
			errs = append(errs, fmt.Errorf("roots[%d]: %w", i, err))
			continue
		}

		if keys[r.Key] {
			errs = append(errs, fmt.Errorf("roots[%d]: duplicate key %q", i, r.Key))
		}

		if ids[r.ID] {
			errs = append(errs, fmt.Errorf("roots[%d]: duplicate id %q", i, r.ID))
		}

		keys[r.Key] = true
		ids[r.ID] = true
	}

	return errs
}

func checkWeekday(value any) error {
	s, _ := value.(string)
	_, err := ParseWeekday(s)

	return err
}

func checkClock(value any) error {
	s, _ := value.(string)
	_, _, err := ParseClock(s)

	return err
}
