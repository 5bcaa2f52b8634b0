package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMatrix(t *testing.T) {
	assert := assert.New(t)
	{
		m, err := ParseMatrix([]byte(`
columns: [1, 3]
rows: [5, 1000]
cardinalities: [2]
`))
		assert.Nil(err)
		assert.Equal([]int{1, 3}, m.Columns)
		assert.Equal([]int{5, 1000}, m.Rows)
		assert.Equal([]int{2}, m.Cardinalities)
	}

	{
		m, err := ParseMatrix([]byte("rows: [5]\n"))
		assert.Nil(err)
		assert.Equal(DefaultMatrix().Columns, m.Columns)
		assert.Equal([]int{5}, m.Rows)
		assert.Equal(DefaultMatrix().Cardinalities, m.Cardinalities)
	}

	{
		m, err := ParseMatrix([]byte(""))
		assert.Nil(err)
		assert.Equal(DefaultMatrix(), m)
	}

	bad := func(src string) {
		_, err := ParseMatrix([]byte(src))
		assert.ErrorIs(err, ErrInvalidMatrix, src)
	}
	bad("columns: [6]\n")
	bad("rows: [7]\n")
	bad("cardinalities: [3]\n")
	bad("rows: []\n")
	bad("rows: [10, 5]\n")
	bad("colums: [1]\n")
	bad("rows: [a]\n")
}

func TestLoadMatrix(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "matrix.yaml")
	assert.Nil(os.WriteFile(path, []byte("columns: [2]\nrows: [10]\ncardinalities: [5]\n"), 0644))

	m, err := LoadMatrix(path)
	assert.Nil(err)
	assert.Equal(1, m.Size())

	_, err = LoadMatrix(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(err)
}
