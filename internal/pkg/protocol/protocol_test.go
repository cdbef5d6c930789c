package protocol

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/error_handling"
	"ess-loan-gateway/internal/pkg/signer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) signer.Signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	s, err := signer.NewRSASigner(privatePEM, publicPEM)
	require.NoError(t, err)
	return s
}

func header(messageType string) Header {
	return Header{Sender: "ESS_UTUMISHI", Receiver: "FSP001", FSPCode: "FL001", MsgID: "msg-1", MessageType: messageType}
}

func TestRenderParseVerifyDecode(t *testing.T) {
	s := newTestSigner(t)
	raw, err := Render(s, header(consts.MessageTypeFinalApprovalNotification), FinalApprovalNotification{
		ApplicationNumber: "APP-1",
		Approval:          consts.ApprovalApproved,
		Reason:            "ok",
	})
	require.NoError(t, err)

	env, err := Parse(raw)
	require.NoError(t, err)
	require.NoError(t, env.Verify(s))
	assert.Equal(t, "msg-1", env.Header.MsgID)

	msg, err := Decode(env)
	require.NoError(t, err)
	details, ok := msg.Details.(*FinalApprovalNotification)
	require.True(t, ok)
	assert.Equal(t, "APP-1", details.ApplicationNumber)
	assert.Equal(t, consts.ApprovalApproved, details.Approval)
}

func TestParse_FragmentIsExactDataRange(t *testing.T) {
	raw := []byte(`<Document><Data><Header><MsgId>1</MsgId></Header><MessageDetails><A>x</A></MessageDetails></Data><Signature>abc</Signature></Document>`)
	env, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, `<Data><Header><MsgId>1</MsgId></Header><MessageDetails><A>x</A></MessageDetails></Data>`, string(env.Fragment))
	assert.Equal(t, "abc", env.Signature)
	assert.Equal(t, "<A>x</A>", string(env.DetailsXML))
}

func TestParse_Malformed(t *testing.T) {
	cases := map[string]string{
		"no data":      `<Document><Signature>abc</Signature></Document>`,
		"no signature": `<Document><Data><Header></Header></Data></Document>`,
		"broken xml":   `<Document><Data><Header></Data></Document>`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			code, _ := error_handling.ResponseCodeFor(err)
			assert.Equal(t, consts.ResponseCodeMalformed, code)
		})
	}
}

func TestVerify_TamperedFragment(t *testing.T) {
	s := newTestSigner(t)
	raw, err := Render(s, header(consts.MessageTypeCancellationNotification), CancellationNotification{ApplicationNumber: "APP-1"})
	require.NoError(t, err)

	env, err := Parse(raw)
	require.NoError(t, err)
	env.Fragment = append([]byte{}, env.Fragment...)
	env.Fragment[len(env.Fragment)-10] = 'X'

	err = env.Verify(s)
	code, _ := error_handling.ResponseCodeFor(err)
	assert.Equal(t, consts.ResponseCodeMalformed, code)
}

func TestDecode_UnknownMessageType(t *testing.T) {
	env := &Envelope{Header: header("SOMETHING_ELSE"), DetailsXML: []byte("<A/>")}
	_, err := Decode(env)
	code, desc := error_handling.ResponseCodeFor(err)
	assert.Equal(t, consts.ResponseCodeMalformed, code)
	assert.Contains(t, desc, "SOMETHING_ELSE")
}

func TestDecode_MissingFieldsNamed(t *testing.T) {
	env := &Envelope{
		Header:     header(consts.MessageTypeTakeoverOfferRequest),
		DetailsXML: []byte("<ApplicationNumber>APP-9</ApplicationNumber><CheckNumber>111</CheckNumber><FirstName>A</FirstName><LastName>B</LastName><NIN>N</NIN><RequestedAmount>100</RequestedAmount><Tenure>12</Tenure><ProductCode>P1</ProductCode>"),
	}
	_, err := Decode(env)
	code, desc := error_handling.ResponseCodeFor(err)
	assert.Equal(t, consts.ResponseCodeMissingField, code)
	assert.Contains(t, desc, "FSP1Code")
	assert.Contains(t, desc, "FSP1LoanNumber")
	assert.Contains(t, desc, "TakeOverBalance")
}

func TestDecode_EmbeddedOfferFields(t *testing.T) {
	env := &Envelope{
		Header:     header(consts.MessageTypeTopUpOfferRequest),
		DetailsXML: []byte("<ApplicationNumber>APP-2</ApplicationNumber><CheckNumber>111</CheckNumber><FirstName>A</FirstName><LastName>B</LastName><NIN>N</NIN><RequestedAmount>100</RequestedAmount><Tenure>12</Tenure><ProductCode>P1</ProductCode><LoanNumber>L-1</LoanNumber>"),
	}
	msg, err := Decode(env)
	require.NoError(t, err)
	offer := msg.Details.(*TopUpOfferRequest)
	assert.Equal(t, "APP-2", offer.ApplicationNumber)
	assert.Equal(t, "L-1", offer.LoanNumber)
}

func TestDecode_MissingHeaderField(t *testing.T) {
	h := header(consts.MessageTypeLoanChargesRequest)
	h.MsgID = ""
	_, err := Decode(&Envelope{Header: h})
	code, desc := error_handling.ResponseCodeFor(err)
	assert.Equal(t, consts.ResponseCodeMissingField, code)
	assert.Contains(t, desc, "MsgID")
}

func TestIsCommand(t *testing.T) {
	assert.False(t, IsCommand(consts.MessageTypeLoanChargesRequest))
	assert.False(t, IsCommand(consts.MessageTypeTakeoverPayOffBalanceRequest))
	assert.True(t, IsCommand(consts.MessageTypeLoanOfferRequest))
	assert.True(t, IsCommand(consts.MessageTypeCancellationNotification))
	assert.False(t, IsCommand("NOPE"))
}
