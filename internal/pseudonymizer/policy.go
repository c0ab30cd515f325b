package pseudonymizer

import (
	"github.com/raaihank/text-pseudonymizer/internal/config"
	"github.com/raaihank/text-pseudonymizer/internal/entity"
	"github.com/raaihank/text-pseudonymizer/internal/registry"
)

// PolicyFromConfig maps the masking switches onto a registry policy
func PolicyFromConfig(cfg config.PseudonymizationConfig) registry.Policy {
	mode := registry.ModeConsistent
	if cfg.UsePlaceholders {
		mode = registry.ModePlaceholder
	}

	return registry.Policy{
		Mode: mode,
		Mask: map[entity.EntityType]bool{
			entity.Person:       cfg.MaskPersons,
			entity.Organization: cfg.MaskOrgs,
			entity.Location:     cfg.MaskLocations,
			entity.Date:         cfg.MaskDates,
			entity.Email:        cfg.MaskEmails,
			entity.Phone:        cfg.MaskPhones,
		},
		MaskOther: cfg.MaskOther,
	}
}

// RegistryOptions returns the fallback settings of cfg
func RegistryOptions(cfg config.PseudonymizationConfig) registry.Options {
	return registry.Options{
		ReplacementChar: cfg.ReplacementChar,
		PreserveLength:  cfg.PreserveLength,
		FallbackLength:  cfg.FallbackLength,
	}
}

// NewRegistry creates an empty registry configured from cfg
func NewRegistry(cfg config.PseudonymizationConfig) *registry.Registry {
	return registry.New(RegistryOptions(cfg))
}
