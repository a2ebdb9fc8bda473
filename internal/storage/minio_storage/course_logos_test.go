package minio_storage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogoObjectKey(t *testing.T) {
	assert.Equal(t, "courses/3/logo.png", LogoObjectKey(3, "defi.png"))
	assert.Equal(t, "courses/1/logo.bin", LogoObjectKey(1, "logo"))
}

func TestGetLogoURLIsPresigned(t *testing.T) {
	storage, err := NewMinioStorage("localhost:9000", "minioadmin", "minioadmin", "us-east-1", false)
	require.NoError(t, err)
	logos := NewLogoStorage(storage, "course-logos", 15*time.Minute)

	raw, err := logos.GetLogoURL(context.Background(), "courses/1/logo.png")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/course-logos/courses/1/logo.png", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}
