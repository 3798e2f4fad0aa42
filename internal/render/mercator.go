package render

import (
	"fmt"
	"math"

	"github.com/couchcryptid/quake-catalog-etl/internal/domain"
)

// MaxLatitude is the largest latitude the Mercator projection can show.
const MaxLatitude = 85.0511287798

// MercatorY projects a latitude onto the Mercator y axis, expressed in
// degrees so that x (longitude) and y share a scale.
func MercatorY(lat float64) float64 {
	return math.Log(math.Tan(math.Pi/4+lat*math.Pi/360)) * 180 / math.Pi
}

// InverseMercatorY maps a projected y value back to latitude.
func InverseMercatorY(y float64) float64 {
	return (2*math.Atan(math.Exp(y*math.Pi/180)) - math.Pi/2) * 180 / math.Pi
}

func checkBounds(b domain.MapBounds) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.MinLatitude < -MaxLatitude || b.MaxLatitude > MaxLatitude {
		return fmt.Errorf("%w: Mercator latitude must be within ±%.4f", domain.ErrInvalidBounds, MaxLatitude)
	}
	return nil
}
