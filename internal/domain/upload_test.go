package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtensionForMime(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/jpeg", "jpg"},
		{"image/JPG", "jpg"},
		{"image/png; charset=binary", "png"},
		{"image/heic", "jpg"},
		{"image/heif", "jpg"},
		{"video/quicktime", "mov"},
		{"application/pdf", "bin"},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtensionForMime(tt.mime))
		})
	}
}

func TestKindForMime(t *testing.T) {
	assert.Equal(t, KindImage, KindForMime("image/webp"))
	assert.Equal(t, KindVideo, KindForMime("video/mp4"))
	assert.Equal(t, KindOther, KindForMime("application/octet-stream"))
}

func TestPrincipalCanRead(t *testing.T) {
	owner := Principal{UserID: "u1", Role: RoleUser}
	other := Principal{UserID: "u2", Role: RoleUser}
	admin := Principal{UserID: "root", Role: RoleAdmin}
	anonymous := Principal{}

	assert.True(t, owner.CanRead("u1"))
	assert.False(t, other.CanRead("u1"))
	assert.True(t, admin.CanRead("u1"))
	assert.False(t, anonymous.CanRead(""))
}
