package audience

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/aikyo-io/campaign-engine/models"
)

// DefinitionHash returns a stable hex digest of an audience definition, used
// as the estimate cache key and persisted on the segment row
func DefinitionHash(def models.AudienceDefinition) string {
	raw, err := json.Marshal(def)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
