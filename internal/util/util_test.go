package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripDiacritics(t *testing.T) {
	require.Equal(t, "Fermee", StripDiacritics("Fermée"))
	require.Equal(t, "Deverrouillee", StripDiacritics("Déverrouillée"))
	require.Equal(t, "plain", StripDiacritics("plain"))
}

func TestSlugify(t *testing.T) {
	require.Equal(t, "entree-principale", Slugify("Entrée Principale"))
	require.Equal(t, "3-cuisine", Slugify("3 Cuisine"))
	require.Equal(t, "salon", Slugify("  Salon!  "))
	require.Equal(t, "", Slugify("???"))
}

func TestNormalize(t *testing.T) {
	require.Equal(t, "MES Totale", Normalize("  MES \n\t Totale "))
	// Non-breaking spaces from the panel's HTML collapse like any other.
	require.Equal(t, "13.6 V", Normalize("13.6 V"))
	require.Equal(t, "", Normalize("  "))
}

func TestEntityID(t *testing.T) {
	require.Equal(t, "3", EntityID("3 Cuisine"))
	require.Equal(t, "17", EntityID("  17 Porte garage"))
	require.Equal(t, "porte-entree", EntityID("Porte Entrée"))
	require.Equal(t, "unknown", EntityID("???"))
}
