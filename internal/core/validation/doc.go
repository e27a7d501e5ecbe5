// Package validation provides pure validation functions for API handlers.
//
// This package contains the functional core logic for validating API requests
// and checking business rules. All functions are pure (no I/O, no side
// effects).
//
// # Functions
//
//   - ValidateCreateDeploymentFields: Validate required fields for deployment creation
//   - CanModifyTemplate: Check if a template can be modified or removed
//   - CanUseTemplate: Check if a deployment can reference a template
//
// # Usage
//
// The API handlers use these functions to validate requests before processing:
//
//	if field, msg := validation.ValidateCreateDeploymentFields(name, mode, tplSlug); field != "" {
//	    // Return 400 Bad Request with msg
//	}
package validation
