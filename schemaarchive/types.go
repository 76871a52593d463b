package schemaarchive

import "strings"

// ArtifactResult is returned by every create_or_update variant.
type ArtifactResult struct {
	ArtifactID string `json:"artifact_id"`
	GlobalID   int64  `json:"global_id"`
	Version    string `json:"version"`
}

// ArtifactMetadata is the response of get_artifact_metadata; a nil pointer
// return models the "not found" case the Java source treats as absent.
type ArtifactMetadata struct {
	ArtifactID  string `json:"artifact_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedOn   string `json:"created_on"`
	ModifiedOn  string `json:"modified_on"`
}

// sanitizeVersion replaces "." with "_" and substitutes "1" for a blank
// version, per §4.6's artifact-id derivation rule. Callers prepend the
// "-config-v" template, so the leading "v" lives there, not here.
func sanitizeVersion(version string) string {
	if strings.TrimSpace(version) == "" {
		return "1"
	}
	return strings.ReplaceAll(version, ".", "_")
}

// DeriveArtifactID implements the default artifact-id derivation:
// "{service_name}-config-v{sanitized_version}".
func DeriveArtifactID(serviceName, version string) string {
	return serviceName + "-config-v" + sanitizeVersion(version)
}

// DeriveArtifactIDWithBase implements the explicit-base variant, used by
// the HTTP-schema path with base "{name}-http". §4.6 defines this as the
// same "-config-v{sanitized_version}" rule applied to an explicit base
// instead of the service name.
func DeriveArtifactIDWithBase(base, version string) string {
	return base + "-config-v" + sanitizeVersion(version)
}
