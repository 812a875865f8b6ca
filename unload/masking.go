package unload

import (
	"sync"

	"github.com/goliatone/go-masker"
)

var defaultMaskerOnce sync.Once

// DefaultMasker returns the shared masker with credential fields registered.
func DefaultMasker() *masker.Masker {
	defaultMaskerOnce.Do(func() {
		if masker.Default == nil {
			return
		}
		registerCredentialFields(masker.Default)
	})
	return masker.Default
}

func registerCredentialFields(mask *masker.Masker) {
	if mask == nil {
		return
	}
	mask.RegisterMaskField("access_token", "filled4")
	mask.RegisterMaskField("api_key", "filled4")
	mask.RegisterMaskField("apikey", "filled4")
	mask.RegisterMaskField("Authorization", "filled4")
}
