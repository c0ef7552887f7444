// Package e2e provides end-to-end tests over a generated place corpus:
// pipeline build, catalog round trip, and vibe search over HTTP.
package e2e

import (
	"fmt"

	"github.com/henryzhan013/roadtrip-planner/internal/catalog"
	"github.com/henryzhan013/roadtrip-planner/internal/pipeline"
)

// PlaceTestCase names a corpus place that a vibe search for its exact
// embedding text must rank first.
type PlaceTestCase struct {
	PlaceID     string
	Description string
}

// Corpus holds generated places and query test cases for E2E tests.
type Corpus struct {
	Places       []catalog.Place
	TestCases    []PlaceTestCase
	TotalPlaces  int
	TotalQueries int
}

// BuildCorpus returns a corpus of 100 places with varied categories and
// cities. Every place renders to a unique embedding text, so searching
// for that exact text must return the place itself at rank one.
func BuildCorpus() *Corpus {
	places := buildPlaces(100)
	cases := buildTestCases(places)
	return &Corpus{
		Places:       places,
		TestCases:    cases,
		TotalPlaces:  len(places),
		TotalQueries: len(cases),
	}
}

func buildPlaces(n int) []catalog.Place {
	topics := []struct {
		category string
		name     string
		phrase   string
		review   string
	}{
		{"honky_tonk", "Broken Wheel Hall", "legendary honky-tonk dance hall with nightly two-stepping", "Best two-stepping in Texas, cold Lone Star on tap."},
		{"bbq", "Post Oak Smokehouse", "brisket smoked over post oak with a line around the block", "Worth the wait, the brisket bark is perfect."},
		{"dive_bar", "Red Neon Lounge", "chill dive bar with a jukebox full of outlaw country", "Cheap beer, good people, zero pretension."},
		{"taco_stand", "La Esquina Tacos", "street tacos al pastor carved off the trompo at midnight", "The al pastor with pineapple is unreal."},
		{"dance_hall", "Cypress Creek Hall", "century-old wooden dance hall hosting western swing bands", "Floors worn smooth by a hundred years of boots."},
		{"rodeo_bar", "Bull Run Saloon", "rowdy bar with a mechanical bull and live rodeo nights", "Rode the bull, lasted four seconds, loved it."},
		{"coffee_shop", "Mesquite Roasters", "sunlit roastery pouring single-origin drip for early risers", "Great cortado before a day of driving."},
		{"swimming_hole", "Bluebonnet Springs", "spring-fed swimming hole shaded by bald cypress trees", "Ice cold water even in August, bring a float."},
		{"music_venue", "Armadillo Room", "listening room where songwriters trade verses unplugged", "Heard the next Townes Van Zandt here."},
		{"kolache_bakery", "Czech Stop Bakery", "roadside bakery stacking sausage kolaches before dawn", "Best road trip breakfast between Dallas and Austin."},
	}
	cities := []string{"Austin", "Lockhart", "Gruene", "San Antonio", "Fort Worth", "Luling", "Bandera", "West"}

	places := make([]catalog.Place, 0, n)
	for i := 0; i < n; i++ {
		topic := topics[i%len(topics)]
		city := cities[i%len(cities)]
		rating := 3.5 + float64(i%15)/10
		places = append(places, catalog.Place{
			PlaceID:     fmt.Sprintf("e2e-%03d", i),
			Name:        fmt.Sprintf("%s No. %d", topic.name, i/len(topics)+1),
			Address:     fmt.Sprintf("%d Main St, %s, TX 78%03d, USA", 100+i, city, 100+i),
			Lat:         29.5 + float64(i)/1000,
			Lng:         -98.5 + float64(i)/1000,
			Rating:      &rating,
			RatingCount: 100 + i*7,
			Description: fmt.Sprintf("%s in %s, stop %d on the route.", topic.phrase, city, i),
			Reviews:     []string{topic.review, fmt.Sprintf("Visit number %d did not disappoint.", i)},
			Category:    topic.category,
		})
	}
	return places
}

// buildTestCases probes a spread of corpus positions, including both ends.
func buildTestCases(places []catalog.Place) []PlaceTestCase {
	idxs := []int{0, 7, 23, 42, 68, len(places) - 1}
	cases := make([]PlaceTestCase, 0, len(idxs))
	for _, i := range idxs {
		if i < 0 || i >= len(places) {
			continue
		}
		cases = append(cases, PlaceTestCase{
			PlaceID:     places[i].PlaceID,
			Description: fmt.Sprintf("finds %s", places[i].Name),
		})
	}
	return cases
}

// ToFetchOutput wraps the corpus as a fetch run result for the catalog
// builder.
func (c *Corpus) ToFetchOutput() *pipeline.FetchOutput {
	return &pipeline.FetchOutput{
		FetchID:     "e2e-fetch",
		TotalPlaces: len(c.Places),
		Places:      c.Places,
	}
}
