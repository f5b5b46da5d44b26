// Package receipt extracts a total amount from receipt photos so expense
// entry can be pre-filled. The result is a suggestion only; recorded
// amounts always come from the user.
package receipt

import (
	"fmt"
	"os"

	"github.com/otiai10/gosseract/v2"
)

// ExtractAmountCents runs OCR over the image at path and returns the most
// likely total in cents, plus the matched line for display. Two passes are
// made: one on the preprocessed image, one on the original, since
// thresholding helps noisy photos but can destroy clean scans.
func ExtractAmountCents(path string) (int64, string, error) {
	var lines []string

	if pre, err := preprocess(path); err == nil {
		if text, err := runPass(pre); err == nil {
			lines = append(lines, FindAmountTokens(text)...)
		}
		_ = os.Remove(pre)
	}
	text, err := runPass(path)
	if err != nil && len(lines) == 0 {
		return 0, "", fmt.Errorf("ocr: %w", err)
	}
	lines = append(lines, FindAmountTokens(text)...)

	cents, raw, ok := BestAmountFromLines(lines)
	if !ok {
		return 0, "", ErrNoAmount
	}
	return cents, raw, nil
}

func runPass(path string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()
	_ = client.SetLanguage("eng")
	_ = client.SetWhitelist("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz.,:$()/- ")
	if err := client.SetImage(path); err != nil {
		return "", err
	}
	text, err := client.Text()
	if err != nil {
		return "", err
	}
	return normalizeText(text), nil
}
