package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ComputeVerifySignature returns the hex HMAC-SHA256 over
// "gatewayOrderID|gatewayPaymentID" with the verify secret
func ComputeVerifySignature(gatewayOrderID, gatewayPaymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature compares a client-supplied signature against the
// expected HMAC in constant time
func VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature, secret string) bool {
	expected := ComputeVerifySignature(gatewayOrderID, gatewayPaymentID, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ComputeWebhookSignature returns the hex HMAC-SHA256 over the raw request
// body with the webhook secret
func ComputeWebhookSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature compares the signature header against the expected
// HMAC of the raw body in constant time
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	expected := ComputeWebhookSignature(body, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
