package humastar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAction_LinkHeader(t *testing.T) {
	a := Action{Rel: "reorder", Href: "/api/v1/layers/reorder", Method: "POST", Title: "Restack layers"}
	assert.Equal(t, `</api/v1/layers/reorder>; rel="reorder"; method="POST"; title="Restack layers"`, a.LinkHeader())

	bare := Action{Rel: "legend", Href: "/api/v1/legend"}
	assert.Equal(t, `</api/v1/legend>; rel="legend"`, bare.LinkHeader())
}
