package protocol

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"

	"ess-loan-gateway/internal/pkg/error_handling"
	"ess-loan-gateway/internal/pkg/signer"
)

var (
	dataOpen  = []byte("<Data>")
	dataClose = []byte("</Data>")

	ErrNoDataElement = errors.New("document has no Data element")
	ErrNoSignature   = errors.New("document has no Signature element")
)

// Header identifies a message on the ESS wire.
type Header struct {
	Sender      string `xml:"Sender" validate:"required"`
	Receiver    string `xml:"Receiver" validate:"required"`
	FSPCode     string `xml:"FSPCode" validate:"required"`
	MsgID       string `xml:"MsgId" validate:"required"`
	MessageType string `xml:"MessageType" validate:"required"`
}

type document struct {
	XMLName   xml.Name     `xml:"Document"`
	Data      documentData `xml:"Data"`
	Signature string       `xml:"Signature"`
}

type documentData struct {
	Header  Header     `xml:"Header"`
	Details innerBytes `xml:"MessageDetails"`
}

type innerBytes struct {
	Inner []byte `xml:",innerxml"`
}

// Envelope is a parsed but not yet verified or decoded inbound document.
// Fragment is the exact <Data>...</Data> byte range covered by the signature.
type Envelope struct {
	Header     Header
	DetailsXML []byte
	Fragment   []byte
	Signature  string
}

// Parse splits a raw document into header, details and the signed fragment.
func Parse(raw []byte) (*Envelope, error) {
	start := bytes.Index(raw, dataOpen)
	end := bytes.LastIndex(raw, dataClose)
	if start < 0 || end < start {
		return nil, error_handling.NewMalformedError("Invalid message format", ErrNoDataElement)
	}

	var doc document
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, error_handling.NewMalformedError("Invalid message format", err)
	}
	if doc.Signature == "" {
		return nil, error_handling.NewMalformedError("Missing signature", ErrNoSignature)
	}

	return &Envelope{
		Header:     doc.Data.Header,
		DetailsXML: doc.Data.Details.Inner,
		Fragment:   raw[start : end+len(dataClose)],
		Signature:  doc.Signature,
	}, nil
}

// Verify checks the envelope signature; any failure is a malformed-message protocol error.
func (e *Envelope) Verify(s signer.Signer) error {
	ok, err := s.Verify(e.Fragment, e.Signature)
	if err != nil {
		return error_handling.NewMalformedError("Invalid signature", err)
	}
	if !ok {
		return error_handling.NewMalformedError("Invalid signature", nil)
	}
	return nil
}

// MarshalDetails renders a details value as a <MessageDetails> element.
func MarshalDetails(details any) ([]byte, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := enc.EncodeElement(details, xml.StartElement{Name: xml.Name{Local: "MessageDetails"}}); err != nil {
		return nil, fmt.Errorf("marshal message details: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("flush message details: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildData assembles the signable <Data> fragment from a header and pre-rendered details.
func BuildData(header Header, detailsXML []byte) ([]byte, error) {
	headerXML, err := xml.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(len(headerXML) + len(detailsXML) + len(dataOpen) + len(dataClose))
	buf.Write(dataOpen)
	buf.Write(headerXML)
	buf.Write(detailsXML)
	buf.Write(dataClose)
	return buf.Bytes(), nil
}

// SignDocument wraps a fragment and its signature into a full document.
func SignDocument(s signer.Signer, fragment []byte) ([]byte, error) {
	signature, err := s.Sign(fragment)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<Document>")
	buf.Write(fragment)
	buf.WriteString("<Signature>")
	buf.WriteString(signature)
	buf.WriteString("</Signature></Document>")
	return buf.Bytes(), nil
}

// Render marshals, assembles and signs an outbound message.
func Render(s signer.Signer, header Header, details any) ([]byte, error) {
	detailsXML, err := MarshalDetails(details)
	if err != nil {
		return nil, err
	}
	fragment, err := BuildData(header, detailsXML)
	if err != nil {
		return nil, err
	}
	return SignDocument(s, fragment)
}
