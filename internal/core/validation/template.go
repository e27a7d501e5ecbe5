package validation

import "github.com/artpar/honeymesh/internal/core/domain"

// =============================================================================
// Request Validation Functions
// =============================================================================

// ValidateCreateDeploymentFields validates required fields for deployment
// creation. Returns the field name and error message if validation fails.
// Returns empty strings if all fields are valid.
//
// Example:
//
//	field, msg := ValidateCreateDeploymentFields("hc1", "medium", "epic-healthcare")
//	if field != "" {
//	    // Handle validation error
//	}
func ValidateCreateDeploymentFields(name, mode, templateSlug string) (field, message string) {
	if name == "" {
		return "name", "name is required"
	}
	if err := domain.ValidateDeploymentName(name); err != nil {
		return "name", err.Error()
	}
	if !domain.DeploymentMode(mode).IsValid() {
		return "mode", "mode must be \"default\" or \"medium\""
	}
	if domain.DeploymentMode(mode) == domain.ModeMedium && templateSlug == "" {
		return "template", domain.ErrTemplateRequired.Error()
	}
	return "", ""
}

// CanModifyTemplate checks if a template can be modified or removed.
// Templates referenced by a live deployment are immutable.
// Returns whether the change is allowed and an optional reason if not.
//
// Example:
//
//	allowed, reason := CanModifyTemplate(liveRefs)
//	if !allowed {
//	    // Return 409 Conflict with reason
//	}
func CanModifyTemplate(liveReferences int) (allowed bool, reason string) {
	if liveReferences > 0 {
		return false, domain.ErrTemplateInUse.Error()
	}
	return true, ""
}

// CanUseTemplate checks if a deployment can reference a template version.
// Returns whether the reference is allowed and an optional reason if not.
func CanUseTemplate(exists bool) (allowed bool, reason string) {
	if !exists {
		return false, "template does not exist"
	}
	return true, ""
}
