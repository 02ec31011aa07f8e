// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed caller input. Handlers map it to an
// HTTP 400.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// DownstreamError wraps a failure from one of the pipeline's collaborators
// (planner, query agent, SQL executor, synthesizer, storage), tagged with
// the stage that failed. Handlers map it to an HTTP 500.
type DownstreamError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *DownstreamError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *DownstreamError) Unwrap() error {
	return e.Err
}

// IsDownstreamError checks if an error is a DownstreamError.
func IsDownstreamError(err error) bool {
	var de *DownstreamError
	return errors.As(err, &de)
}

func downstream(stage string, err error) error {
	return &DownstreamError{Stage: stage, Err: err}
}
