package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessRequest_Valid(t *testing.T) {
	req := &ProcessRequest{ClaimID: "CLM-2024-001", Description: "front-end collision"}
	assert.NoError(t, req.Validate())
}

func TestProcessRequest_MissingFields(t *testing.T) {
	assert.Error(t, (&ProcessRequest{Description: "collision"}).Validate())
	assert.Error(t, (&ProcessRequest{ClaimID: "CLM-1"}).Validate())
}

func TestProcessRequest_ClaimIDTooLong(t *testing.T) {
	req := &ProcessRequest{ClaimID: strings.Repeat("x", 129), Description: "collision"}
	assert.Error(t, req.Validate())
}
