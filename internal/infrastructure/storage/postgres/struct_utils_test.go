package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stockpile/internal/core/entity"
	"stockpile/internal/core/id"
)

type MockCatalog struct {
	entity.BaseCatalog
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[MockCatalog]()

	expectedCols := []string{
		"id", "deletion_mark", "version", "attributes", "code", "name",
	}

	for _, expected := range expectedCols {
		assert.Contains(t, cols, expected)
	}
}

func TestStructToMap(t *testing.T) {
	cat := MockCatalog{
		BaseCatalog: entity.BaseCatalog{
			BaseEntity: entity.BaseEntity{
				ID:           id.New(),
				DeletionMark: true,
				Version:      5,
			},
		},
		Code: "TEST",
		Name: "Test Name",
	}

	m := StructToMap(cat)

	assert.Equal(t, cat.ID, m["id"])
	assert.Equal(t, true, m["deletion_mark"])
	assert.Equal(t, 5, m["version"])
	assert.Equal(t, "TEST", m["code"])
	assert.Equal(t, "Test Name", m["name"])
}

func TestStructToMap_SkipsUntaggedAndDashFields(t *testing.T) {
	type withSkips struct {
		Kept    string `db:"kept"`
		Skipped string `db:"-"`
		NoTag   string
	}

	m := StructToMap(withSkips{Kept: "a", Skipped: "b", NoTag: "c"})

	assert.Equal(t, "a", m["kept"])
	assert.NotContains(t, m, "-")
	assert.NotContains(t, m, "Skipped")
	assert.NotContains(t, m, "NoTag")
}
