// ABOUTME: Text and encoding operations for the dataproc tool: cleaning,
// ABOUTME: tokenizing, n-grams, edit distance, hashing, and base64.

package builtins

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	punctPattern  = regexp.MustCompile(`[^\w\s]`)
	numberPattern = regexp.MustCompile(`-?\d+\.?\d*`)
)

func processText(params json.RawMessage) (any, error) {
	var in struct {
		Text      string `json:"text"`
		Operation string `json:"operation"`
		N         int    `json:"n"`
		CompareTo string `json:"compare_to"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	if in.Operation == "" {
		in.Operation = "clean"
	}

	switch in.Operation {
	case "clean":
		return map[string]any{"cleaned": cleanText(in.Text)}, nil
	case "extract_numbers":
		return map[string]any{"numbers": extractNumbers(in.Text)}, nil
	case "tokenize":
		return map[string]any{"tokens": strings.Fields(in.Text)}, nil
	case "ngrams":
		n := in.N
		if n == 0 {
			n = 2
		}
		return map[string]any{"ngrams": ngrams(strings.Fields(in.Text), n)}, nil
	case "distance":
		return map[string]any{"distance": levenshtein(in.Text, in.CompareTo)}, nil
	default:
		return nil, fmt.Errorf("unknown text operation: %s", in.Operation)
	}
}

func cleanText(text string) string {
	text = strings.ToLower(text)
	text = punctPattern.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

func extractNumbers(text string) []float64 {
	out := []float64{}
	for _, m := range numberPattern.FindAllString(text, -1) {
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func ngrams(tokens []string, n int) []string {
	if n <= 0 || n > len(tokens) {
		return []string{}
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], " "))
	}
	return out
}

func levenshtein(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) < len(r2) {
		r1, r2 = r2, r1
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i, c1 := range r1 {
		cur := make([]int, 1, len(r2)+1)
		cur[0] = i + 1
		for j, c2 := range r2 {
			cost := 0
			if c1 != c2 {
				cost = 1
			}
			best := prev[j+1] + 1 // insertion
			if del := cur[j] + 1; del < best {
				best = del
			}
			if sub := prev[j] + cost; sub < best {
				best = sub
			}
			cur = append(cur, best)
		}
		prev = cur
	}
	return prev[len(r2)]
}

func cryptoOperation(params json.RawMessage) (any, error) {
	var in struct {
		Data      string `json:"data"`
		Operation string `json:"operation"`
		Algorithm string `json:"algorithm"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, err
	}
	if in.Operation == "" {
		in.Operation = "hash"
	}

	switch in.Operation {
	case "hash":
		algorithm := in.Algorithm
		if algorithm == "" {
			algorithm = "sha256"
		}
		digest, err := hashData(in.Data, algorithm)
		if err != nil {
			return nil, err
		}
		return map[string]any{"hash": digest}, nil
	case "encode":
		return map[string]any{"encoded": base64.StdEncoding.EncodeToString([]byte(in.Data))}, nil
	case "decode":
		decoded, err := base64.StdEncoding.DecodeString(in.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid base64: %w", err)
		}
		return map[string]any{"decoded": string(decoded)}, nil
	default:
		return nil, fmt.Errorf("unknown crypto operation: %s", in.Operation)
	}
}

func hashData(data, algorithm string) (string, error) {
	switch strings.ToLower(algorithm) {
	case "md5":
		sum := md5.Sum([]byte(data))
		return hex.EncodeToString(sum[:]), nil
	case "sha1":
		sum := sha1.Sum([]byte(data))
		return hex.EncodeToString(sum[:]), nil
	case "sha256":
		sum := sha256.Sum256([]byte(data))
		return hex.EncodeToString(sum[:]), nil
	case "sha512":
		sum := sha512.Sum512([]byte(data))
		return hex.EncodeToString(sum[:]), nil
	default:
		return "", fmt.Errorf("unsupported algorithm: %s", algorithm)
	}
}
