package ocr

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"

	"github.com/joseph-ayodele/invoice-tracker/constants"
)

// azureEngine reads printed text through the Azure Computer Vision OCR endpoint.
type azureEngine struct {
	client computervision.BaseClient
}

func newAzureEngine(endpoint, key string) *azureEngine {
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(key)
	return &azureEngine{client: client}
}

func (a *azureEngine) recognize(ctx context.Context, r io.Reader) (string, error) {
	result, err := a.client.RecognizePrintedTextInStream(
		ctx,
		true,
		io.NopCloser(r),
		computervision.OcrLanguages(computervision.En),
	)
	if err != nil {
		return "", fmt.Errorf("azure ocr: %w", err)
	}
	return ocrResultText(result), nil
}

// ocrResultText joins words per line and lines per region, in reading order.
func ocrResultText(result computervision.OcrResult) string {
	if result.Regions == nil {
		return ""
	}
	var b strings.Builder
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			words := make([]string, 0, len(*line.Words))
			for _, word := range *line.Words {
				if word.Text != nil {
					words = append(words, *word.Text)
				}
			}
			b.WriteString(strings.Join(words, " "))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (e *Extractor) azureImage(ctx context.Context, path string) (ExtractionResult, error) {
	if e.azure == nil {
		return ExtractionResult{SourceType: constants.IMAGE}, fmt.Errorf("azure engine not configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return ExtractionResult{SourceType: constants.IMAGE}, err
	}
	defer f.Close()

	txt, err := e.azure.recognize(ctx, f)
	if err != nil {
		return ExtractionResult{SourceType: constants.IMAGE}, err
	}
	txt = Normalize(txt)
	var conf float64
	if txt != "" {
		conf = heuristicConfidence(txt)
	}
	return ExtractionResult{
		Text:       txt,
		Pages:      1,
		SourceType: constants.IMAGE,
		Method:     constants.OCRMethodImageOCR,
		Language:   string(computervision.En),
		Confidence: conf,
	}, nil
}
