// Package listener is the consuming side of the simulation: it decodes location
// events from a destination and passes on the ones for one country.
package listener

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ukydev/fleet-journey-sim/internal/models"
)

// Handler receives matching events.
type Handler func(models.LocationEvent)

// Filter returns a message handler that decodes each body and calls h for events
// whose country code equals countryCode. An empty countryCode matches all.
func Filter(countryCode string, h Handler) func([]byte) error {
	countryCode = strings.ToUpper(countryCode)
	return func(body []byte) error {
		var ev models.LocationEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("decode location event: %w", err)
		}
		if countryCode != "" && !strings.EqualFold(ev.CountryCode, countryCode) {
			return nil
		}
		h(ev)
		return nil
	}
}
