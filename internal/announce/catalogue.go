package announce

import (
	"fmt"

	"github.com/ruteravelar/filavoz/internal/models"
)

// DefaultCatalogue lists the fixed destination phrases warmed up once per
// deployment. Patient-name announcements are cached lazily on first play.
func DefaultCatalogue() []string {
	phrases := []string{
		"Atenção",
		"Por favor, compareça à recepção",
		"Consultório 1",
		"Consultório 2",
		"Consultório 3",
	}
	for _, st := range models.DefaultStations() {
		phrases = append(phrases, st.Name)
	}
	return phrases
}

// CallText builds the spoken text for a patient call.
func CallText(name, destination string) string {
	if destination == "" {
		return name
	}
	return fmt.Sprintf("%s, %s", name, destination)
}
