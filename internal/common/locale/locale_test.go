package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		preferred string
		system    []string
		want      string
	}{
		{name: "stored preference wins", preferred: "es", system: []string{"pt-BR"}, want: "es"},
		{name: "regional preference", preferred: "pt-BR", want: "pt"},
		{name: "unsupported preference falls to system", preferred: "de", system: []string{"es-AR"}, want: "es"},
		{name: "nothing matches", preferred: "", system: []string{"ja-JP"}, want: "pt"},
		{name: "no input", want: "pt"},
		{name: "garbage system tags", system: []string{"!!"}, want: "pt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.preferred, tt.system...))
		})
	}
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("pt"))
	assert.True(t, Supported("es-MX"))
	assert.False(t, Supported("fr"))
	assert.False(t, Supported(""))
}
