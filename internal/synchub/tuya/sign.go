package tuya

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// The vendor's "Business Mode" signature:
//
//	sign = HEX_UPPER(HMAC-SHA256(secret, clientId + accessToken + t + nonce + stringToSign))
//	stringToSign = method \n SHA256(body) \n headers \n urlPathWithQuery
//
// accessToken is empty for the token-acquisition call, the nonce is always
// the empty string, headers are never signed, and an absent body hashes as
// the empty string.
const signMethod = "HMAC-SHA256"

func sha256Hex(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// stringToSign canonicalizes one request for signing.
func stringToSign(method, path string, body []byte) string {
	return strings.Join([]string{method, sha256Hex(body), "", path}, "\n")
}

// sign computes the request signature. token must be "" for the token call.
func sign(clientID, secret, token, timestamp, nonce, method, path string, body []byte) string {
	input := clientID + token + timestamp + nonce + stringToSign(method, path, body)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(input))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}
