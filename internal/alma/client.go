package alma

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"golang.org/x/net/html/charset"
)

// Record schemas understood by the SRU endpoint
const (
	SchemaMARCXML = "marcxml"
	SchemaMODS    = "mods"
)

// XPath expressions evaluated against SRU responses
const (
	XPathNumberOfRecords = "/*[local-name()='searchRetrieveResponse']/*[local-name()='numberOfRecords']"
	XPathRecordData      = "/*[local-name()='searchRetrieveResponse']/*[local-name()='records']/*[local-name()='record']/*[local-name()='recordData']"
	XPathModsRecord      = XPathRecordData + "/*[local-name()='mods']"
	XPathElectronicLink  = "//*[local-name()='datafield'][@tag='856']/*[local-name()='subfield'][@code='u']"
)

// ErrAmbiguousResult is returned when a barcode search does not match exactly one record
var ErrAmbiguousResult = errors.New("did not receive exactly 1 result from Alma")

// Client queries the Alma SRU interface
type Client struct {
	baseURL       *url.URL
	fetcher       Fetcher
	validateCount bool
}

// NewClient creates a new SRU client. In collection mode the result count of
// record searches is not validated.
func NewClient(baseURL string, fetcher Fetcher, collectionMode bool) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SRU base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("SRU base URL must be absolute: %q", baseURL)
	}
	return &Client{
		baseURL:       u,
		fetcher:       fetcher,
		validateCount: !collectionMode,
	}, nil
}

// FetchRecord retrieves the MARCXML record of the item with the given barcode
func (c *Client) FetchRecord(ctx context.Context, barcode string) ([]byte, error) {
	return c.fetchFragment(ctx, c.searchURL(1, 2, SchemaMARCXML, "alma.barcode="+barcode), XPathRecordData)
}

// FetchRecordByISBN retrieves the MODS record of the title with the given ISBN
func (c *Client) FetchRecordByISBN(ctx context.Context, isbn string) ([]byte, error) {
	return c.fetchFragment(ctx, c.searchURL(1, 2, SchemaMODS, "isbn="+isbn), XPathModsRecord)
}

// FetchCollectionPage retrieves the raw response for one record of an
// electronic collection. Pages start at 1.
func (c *Client) FetchCollectionPage(ctx context.Context, collection string, page int) ([]byte, error) {
	raw, err := c.fetcher.Fetch(ctx, c.searchURL(page, 1, SchemaMARCXML, "alma.packageName="+collection))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %d of collection %s: %w", page, collection, err)
	}
	return raw, nil
}

func (c *Client) searchURL(startRecord, maximumRecords int, schema, query string) string {
	u := *c.baseURL
	q := u.Query()
	if q.Get("version") == "" {
		q.Set("version", "1.2")
	}
	if q.Get("operation") == "" {
		q.Set("operation", "searchRetrieve")
	}
	q.Set("startRecord", strconv.Itoa(startRecord))
	q.Set("maximumRecords", strconv.Itoa(maximumRecords))
	q.Set("recordSchema", schema)
	q.Set("query", query)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) fetchFragment(ctx context.Context, searchURL, fragment string) ([]byte, error) {
	slog.Debug("Querying Alma", "url", searchURL)

	raw, err := c.fetcher.Fetch(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	if c.validateCount {
		env, err := decodeEnvelope(raw)
		if err != nil {
			return nil, err
		}
		if env.NumberOfRecords != "1" {
			if msg := env.diagnostic(); msg != "" {
				return nil, fmt.Errorf("%w: got %q records (%s)", ErrAmbiguousResult, env.NumberOfRecords, msg)
			}
			return nil, fmt.Errorf("%w: got %q records", ErrAmbiguousResult, env.NumberOfRecords)
		}
	}

	return IsolateFragment(raw, fragment)
}

// envelope is the part of an SRU searchRetrieveResponse the client validates
type envelope struct {
	XMLName         xml.Name `xml:"searchRetrieveResponse"`
	NumberOfRecords string   `xml:"numberOfRecords"`
	Diagnostics     []struct {
		Message string `xml:"message"`
		Details string `xml:"details"`
	} `xml:"diagnostics>diagnostic"`
}

func (e *envelope) diagnostic() string {
	var parts []string
	for _, d := range e.Diagnostics {
		msg := strings.TrimSpace(d.Message)
		if details := strings.TrimSpace(d.Details); details != "" {
			msg += ": " + details
		}
		if msg != "" {
			parts = append(parts, msg)
		}
	}
	return strings.Join(parts, "; ")
}

func decodeEnvelope(raw []byte) (*envelope, error) {
	decoder := xml.NewDecoder(bytes.NewReader(raw))
	decoder.CharsetReader = charset.NewReaderLabel

	var env envelope
	if err := decoder.Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode SRU response: %w", err)
	}
	env.NumberOfRecords = strings.TrimSpace(env.NumberOfRecords)
	return &env, nil
}

// ExtractFieldValues evaluates an XPath expression against raw XML and
// returns the text of every match in document order.
func ExtractFieldValues(raw []byte, expr string) ([]string, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	nodes, err := xmlquery.QueryAll(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate %q: %w", expr, err)
	}

	values := make([]string, 0, len(nodes))
	for _, node := range nodes {
		values = append(values, node.InnerText())
	}
	return values, nil
}
