package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const LookupInventoryName = "lookupInventory"

// Agent is the persona configured on the realtime session.
type Agent struct {
	Name              string
	PublicDescription string
	Instructions      string
	Tools             []Tool
}

const inventoryInstructions = `You are an agent who answers user questions about store products from a CSV.
Then call the "lookupInventory" tool with priceRange, shortDescription, category.
Do not call the tool unless the USER explicitly asks to look for a product.
After the tool returns results, read the 'recommendations' array from /api/recommend
to finalize your answer, giving a few options for them and their descriptions.
If none match, politely say so.
Start the conversation with 'Hello, what are you looking for today?'`

const lookupInventoryDescription = `Look up from CSV by calling /api/recommend.
Provide productName, subCategory, priceRange, brand, etc. if known.
Expects a response with 'recommendations'.
Each recommendation has 'product', 'short description', 'price', 'brand', etc.
Unknown parameters can have value 'any'.
Do not set values for any categories which are not explicitly mentioned (e.g. input: 'Adidas Hoodie' will have product name 'any').
Ensure subCategory is a valid, real category, as specified in subCategory description.
If user is looking for a broad type of product (e.g. input: 'I am looking to get a fitness watch'), request priceRange
and then look up from CSV, ensuring only subCategory and priceRange are set, with all other parameters as 'any'.`

var lookupInventoryParameters = json.RawMessage(`{
  "type": "object",
  "properties": {
    "productName": {"type": "string", "description": "Name of product"},
    "subCategory": {
      "type": "string",
      "description": "\"Running\", \"Training\", \"Walking\", \"Sneakers\", \"Shorts\", \"Leggings\", \"Tops\", \"Jackets\", \"Hoodies\", \"Track Pants\", \"Socks\", \"Bags\", \"Hats\", \"Sunglasses\", \"Fitness\", \"Electronics\", \"Balls\", \"Rackets\", \"Cricket\", \"Basketball\", \"Rugby\", \"Goggles\", \"Swimwear\", \"Weights\", \"Cardio\", \"Benches\""
    },
    "priceRange": {
      "type": "object",
      "properties": {
        "min": {"type": "number", "description": "Minimum price"},
        "max": {"type": "number", "description": "Maximum price"}
      },
      "required": ["min", "max"],
      "additionalProperties": false
    },
    "brand": {"type": "string", "description": "e.g. 'Nike', 'Adidas', 'Asics', 'Reebok'"}
  },
  "required": ["productName", "subCategory", "priceRange", "brand"]
}`)

// InventoryAgent returns the store assistant persona backed by a catalog
// service at serverURL.
func InventoryAgent(serverURL string, timeout time.Duration) Agent {
	return Agent{
		Name:              "inventoryAgent",
		PublicDescription: "Handles queries about store products.",
		Instructions:      inventoryInstructions,
		Tools:             []Tool{NewLookupInventory(serverURL, timeout)},
	}
}

// Registry builds a registry from the agent's tools.
func (a Agent) Registry() (*Registry, error) {
	return NewRegistry(a.Tools...)
}

// LookupInventory forwards the agent's filter to the catalog service's
// recommend endpoint and returns its JSON answer verbatim.
type LookupInventory struct {
	url    string
	client *http.Client
}

func NewLookupInventory(serverURL string, timeout time.Duration) *LookupInventory {
	return &LookupInventory{
		url: strings.TrimRight(strings.TrimSpace(serverURL), "/") + "/api/recommend",
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (l *LookupInventory) Spec() Spec {
	return Spec{
		Type:        "function",
		Name:        LookupInventoryName,
		Description: lookupInventoryDescription,
		Parameters:  lookupInventoryParameters,
	}
}

func (l *LookupInventory) Run(ctx context.Context, args json.RawMessage) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(args))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("recommend http status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("recommend response is not JSON")
	}
	return json.RawMessage(body), nil
}
