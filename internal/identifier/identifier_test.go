package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gustavo-camilo/dealer-copilot/internal/domain"
)

func TestIdentifyVINWins(t *testing.T) {
	g := NewGenerator()
	id, ok := g.Identify(&domain.ParsedVehicle{
		VIN:         "1HGCV1F30LA012345",
		StockNumber: "ABC123",
		Year:        2020, Make: "Honda", Model: "Accord",
	})
	require.True(t, ok)
	assert.Equal(t, "1HGCV1F30LA012345", id)
}

func TestIdentifyStock(t *testing.T) {
	g := NewGenerator()
	id, ok := g.Identify(&domain.ParsedVehicle{
		StockNumber: "abc123",
		Year:        2019, Make: "Toyota", Model: "Camry",
	})
	require.True(t, ok)
	assert.Equal(t, "STOCK_ABC123", id)
}

func TestIdentifyAttributeHash(t *testing.T) {
	g := NewGenerator()
	id, ok := g.Identify(&domain.ParsedVehicle{
		Year: 2021, Make: "Ford", Model: "F-150",
		Mileage: 28000, Price: 37000,
	})
	require.True(t, ok)
	assert.Equal(t, "2021_FORD_F-150__28000__37000", id)
}

func TestIdentifyStableAcrossRuns(t *testing.T) {
	v := &domain.ParsedVehicle{
		Year: 2021, Make: "Ford", Model: "F-150",
		Mileage: 28000, Price: 37000,
	}
	id1, _ := NewGenerator().Identify(v)
	id2, _ := NewGenerator().Identify(v)
	assert.Equal(t, id1, id2, "same attributes must give the same identifier across runs")
}

func TestIdentifyCollisionGetsURLSalt(t *testing.T) {
	g := NewGenerator()
	a := &domain.ParsedVehicle{
		Year: 2021, Make: "Ford", Model: "F-150",
		Mileage: 28000, Price: 37000,
		ListingURL: "https://dealer.test/inventory/f150-silver",
	}
	b := &domain.ParsedVehicle{
		Year: 2021, Make: "Ford", Model: "F-150",
		Mileage: 28000, Price: 37000,
		ListingURL: "https://dealer.test/inventory/f150-black",
	}
	idA, ok := g.Identify(a)
	require.True(t, ok)
	idB, ok := g.Identify(b)
	require.True(t, ok)

	assert.NotEqual(t, idA, idB, "colliding attribute hashes must be salted apart")
	assert.Equal(t, "2021_FORD_F-150__28000__37000", idA, "first assignment keeps the bare base")
	assert.Contains(t, idB, "2021_FORD_F-150__28000__37000_")
	assert.Contains(t, idB, "BLACK")
}

func TestIdentifyCollisionWithoutURL(t *testing.T) {
	g := NewGenerator()
	v := &domain.ParsedVehicle{Year: 2021, Make: "Ford", Model: "F-150", Price: 37000}
	idA, _ := g.Identify(v)
	idB, _ := g.Identify(v)
	assert.NotEqual(t, idA, idB)
}

func TestIdentifySkipsSignalless(t *testing.T) {
	g := NewGenerator()
	_, ok := g.Identify(&domain.ParsedVehicle{Year: 2020, Make: "Honda"}) // no model
	assert.False(t, ok)
	_, ok = g.Identify(&domain.ParsedVehicle{Price: 20000})
	assert.False(t, ok)
}

func TestIdentifyPreloadedSeen(t *testing.T) {
	g := NewGenerator()
	g.Seen("2021_FORD_F-150__28000__37000")
	id, ok := g.Identify(&domain.ParsedVehicle{
		Year: 2021, Make: "Ford", Model: "F-150",
		Mileage: 28000, Price: 37000,
		ListingURL: "https://dealer.test/inventory/f150-4wd",
	})
	require.True(t, ok)
	assert.Equal(t, "2021_FORD_F-150__28000__37000_4WD", id)
}

func TestIsSynthetic(t *testing.T) {
	assert.True(t, IsSynthetic("STOCK_ABC123"))
	assert.True(t, IsSynthetic("2021_FORD_F-150__28000__37000"))
	assert.False(t, IsSynthetic("1HGCV1F30LA012345"))
}
