package coordinator

import "github.com/pipestream/broker/api"

// validateRegisterRequest implements §4.1's validation rule: name non-empty;
// kind must be SERVICE or MODULE; advertised_host non-empty; advertised_port
// positive.
func validateRegisterRequest(req api.RegisterRequest) bool {
	if req.Name == "" {
		return false
	}
	if req.Kind != api.RegistrantKindService && req.Kind != api.RegistrantKindModule {
		return false
	}
	if req.Connectivity.AdvertisedHost == "" {
		return false
	}
	if req.Connectivity.AdvertisedPort <= 0 {
		return false
	}
	return true
}
