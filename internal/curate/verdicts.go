package curate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoImagesDownloaded means every candidate image failed to download.
var ErrNoImagesDownloaded = errors.New("no candidate images could be downloaded")

// ErrAllBatchesFailed means every multi-modal request failed at the
// transport level.
var ErrAllBatchesFailed = errors.New("all photo batches failed")

// ParseError is a structural parse failure of a model answer. The raw
// response is kept verbatim so the operator can diagnose it; a
// malformed answer is never guessed at or partially accepted.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("model answer does not match the expected structure: %s", e.Raw)
}

// AudioVerdict is the model's judgment on one artist.
type AudioVerdict struct {
	Band     string  `json:"band"`
	Approval float32 `json:"approval"`
}

// PhotoVerdict is the model's judgment on one image, keyed by the
// identifier sent alongside it.
type PhotoVerdict struct {
	Photo    string `json:"photo"`
	Approval bool   `json:"approval"`
}

type audioVerdicts struct {
	Result []AudioVerdict `json:"result"`
}

type photoVerdicts struct {
	Result []PhotoVerdict `json:"result"`
}

func parseAudioVerdicts(answer string) (*audioVerdicts, error) {
	var v audioVerdicts
	if err := unmarshalAnswer(answer, &v); err != nil {
		return nil, &ParseError{Raw: answer}
	}
	return &v, nil
}

func parsePhotoVerdicts(answer string) (*photoVerdicts, error) {
	var v photoVerdicts
	if err := unmarshalAnswer(answer, &v); err != nil {
		return nil, &ParseError{Raw: answer}
	}
	return &v, nil
}

// unmarshalAnswer decodes a model answer as JSON, tolerating a markdown
// code fence around the payload but nothing else.
func unmarshalAnswer(answer string, out any) error {
	text := strings.TrimSpace(answer)
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		end := len(lines) - 1
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				end = i
				break
			}
		}
		text = strings.Join(lines[1:end], "\n")
	}
	if text == "" {
		return errors.New("empty answer")
	}
	return json.Unmarshal([]byte(text), out)
}
