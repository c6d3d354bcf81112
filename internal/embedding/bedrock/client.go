package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// Client generates embeddings with Amazon Titan models on AWS Bedrock.
// It satisfies the pipeline Embedder contract.
type Client struct {
	client  *bedrockruntime.Client
	modelID string
	region  string
}

// titanRequest is the request body for Titan embedding models
type titanRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize,omitempty"`
}

// titanResponse is the response body from Titan embedding models
type titanResponse struct {
	Embedding           []float64 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// NewClient creates a Bedrock embedding client.
func NewClient(awsConfig aws.Config, modelID string) *Client {
	if modelID == "" {
		modelID = "amazon.titan-embed-text-v2:0"
	}

	return &Client{
		client:  bedrockruntime.NewFromConfig(awsConfig),
		modelID: modelID,
		region:  awsConfig.Region,
	}
}

// Embed creates an embedding vector for the given text segment.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	request := titanRequest{
		InputText:  text,
		Dimensions: c.Dimensions(),
		Normalize:  true,
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	input := &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        requestBody,
	}

	result, err := c.client.InvokeModel(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke bedrock model: %w", err)
	}

	var response titanResponse
	if err := json.Unmarshal(result.Body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(response.Embedding) == 0 {
		return nil, fmt.Errorf("no embedding data in response (token count: %d)", response.InputTextTokenCount)
	}

	embedding := make([]float32, len(response.Embedding))
	for i, v := range response.Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

// ValidateConnection checks if the Bedrock service is accessible.
func (c *Client) ValidateConnection(ctx context.Context) error {
	if _, err := c.Embed(ctx, "connection test"); err != nil {
		return fmt.Errorf("connection validation failed: %w", err)
	}
	return nil
}

// Dimensions returns the output vector size for the configured model.
func (c *Client) Dimensions() int {
	switch c.modelID {
	case "amazon.titan-embed-text-v1":
		return 1536
	default:
		return 1024 // Titan v2 default
	}
}

// ModelID returns the configured model identifier.
func (c *Client) ModelID() string {
	return c.modelID
}

// Region returns the AWS region being used.
func (c *Client) Region() string {
	return c.region
}
