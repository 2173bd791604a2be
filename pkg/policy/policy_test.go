package policy

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"model_upload_backend/pkg/sigv4"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)

func testInput() Input {
	return Input{
		Bucket:      "models",
		AccessKeyID: "AKIDEXAMPLE",
		Scope:       sigv4.NewScope(testNow, "us-west-1", "s3"),
		Expiration:  testNow.Add(15 * time.Minute),
		Now:         func() time.Time { return testNow },
	}
}

func TestBuild_Document(t *testing.T) {
	p, err := Build(testInput())
	require.NoError(t, err)

	encoded, err := p.Encode()
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	var doc struct {
		Expiration string            `json:"expiration"`
		Conditions []json.RawMessage `json:"conditions"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "2026-10-17T12:15:00.000Z", doc.Expiration)
	require.Len(t, doc.Conditions, 7)
	assert.JSONEq(t, `{"bucket":"models"}`, string(doc.Conditions[0]))
	assert.JSONEq(t, `{"acl":"private"}`, string(doc.Conditions[1]))
	assert.JSONEq(t, `["starts-with","$key","uploads"]`, string(doc.Conditions[2]))
	assert.JSONEq(t, `{"x-amz-algorithm":"AWS4-HMAC-SHA256"}`, string(doc.Conditions[3]))
	assert.JSONEq(t, `{"x-amz-credential":"AKIDEXAMPLE/20261017/us-west-1/s3/aws4_request"}`, string(doc.Conditions[4]))
	assert.JSONEq(t, `{"x-amz-date":"20261017T000000Z"}`, string(doc.Conditions[5]))
	assert.JSONEq(t, `["content-length-range",0,10485760]`, string(doc.Conditions[6]))
}

func TestBuild_DefaultsToFarFuture(t *testing.T) {
	in := testInput()
	in.Expiration = time.Time{}

	p, err := Build(in)
	require.NoError(t, err)
	assert.Equal(t, FarFuture, p.Expiration)
}

func TestBuild_Rejects(t *testing.T) {
	in := testInput()
	in.Expiration = testNow.Add(-time.Second)
	_, err := Build(in)
	assert.ErrorIs(t, err, ErrExpired)

	in = testInput()
	in.Bucket = ""
	_, err = Build(in)
	assert.ErrorIs(t, err, ErrMissingKeys)
}

func TestBuildAndSign_SignatureCoversEncoding(t *testing.T) {
	in := testInput()
	signed, err := BuildAndSign(in, "wJalrXUtnFEMI")
	require.NoError(t, err)

	key, err := sigv4.DeriveSigningKey("wJalrXUtnFEMI", in.Scope)
	require.NoError(t, err)
	assert.True(t, sigv4.Verify(key, signed.Encoded, signed.Signature))

	rawJSON, err := json.Marshal(signed.Policy)
	require.NoError(t, err)
	assert.False(t, sigv4.Verify(key, string(rawJSON), signed.Signature))

	fields := signed.Policy.FormFields("uploads/abc/model.fmu", signed.Encoded, signed.Signature)
	assert.Equal(t, signed.Encoded, fields["policy"])
	assert.Equal(t, signed.Signature, fields["x-amz-signature"])
	assert.Equal(t, "private", fields["acl"])
	assert.Equal(t, "uploads/abc/model.fmu", fields["key"])
}

func TestBuildAndSign_MissingSecret(t *testing.T) {
	_, err := BuildAndSign(testInput(), "")
	assert.ErrorIs(t, err, sigv4.ErrMissingSecret)
}

func TestAllows(t *testing.T) {
	p, err := Build(testInput())
	require.NoError(t, err)

	assert.NoError(t, p.Allows("uploads/a/model.zip", 9*1024*1024, testNow))
	assert.NoError(t, p.Allows("uploads/a/model.zip", MaxUploadSize, testNow))
	assert.Error(t, p.Allows("uploads/a/model.zip", MaxUploadSize+1, testNow))
	assert.Error(t, p.Allows("other/model.zip", 10, testNow))
	assert.ErrorIs(t, p.Allows("uploads/a/model.zip", 10, testNow.Add(time.Hour)), ErrExpired)
}
