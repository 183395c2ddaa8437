package keygen

import (
	"crypto/rand"
	"math/big"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const alphaNumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// allowedImageExts maps accepted upload extensions to their canonical form
var allowedImageExts = map[string]string{
	".jpg":  ".jpg",
	".jpeg": ".jpg",
	".png":  ".png",
	".gif":  ".gif",
	".webp": ".webp",
}

// TokenID generates the random id carried by each session token so that two
// logins within the same second never sign identical tokens
func TokenID() (string, error) {
	return randomString(24, alphaNumeric)
}

// ImageFilename generates the server-assigned name for an uploaded image.
// Only the extension of the client's name survives; unknown extensions are dropped.
func ImageFilename(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	return uuid.NewString() + allowedImageExts[ext]
}

// IsImageFilename reports whether name has an accepted image extension
func IsImageFilename(name string) bool {
	_, ok := allowedImageExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// randomString generates a random string of given length from the given charset
func randomString(length int, charset string) (string, error) {
	result := make([]byte, length)
	charsetLen := big.NewInt(int64(len(charset)))

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", err
		}
		result[i] = charset[num.Int64()]
	}

	return string(result), nil
}
