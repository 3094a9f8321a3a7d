package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samcharles93/modelgate/internal/api"
)

const envModelgateModelsDir = "MODELGATE_MODELS_DIR"

// resolveModelPath picks the model to open: the --model flag, or the only
// compiled model in the models directory.
func resolveModelPath(modelFlag, modelsDir string) (string, error) {
	modelFlag = strings.TrimSpace(modelFlag)
	if modelFlag != "" {
		return filepath.Clean(modelFlag), nil
	}

	dir := strings.TrimSpace(modelsDir)
	if dir == "" {
		dir = strings.TrimSpace(os.Getenv(envModelgateModelsDir))
	}
	if dir == "" {
		return "", fmt.Errorf("--model or --models-path is required unless %s is set", envModelgateModelsDir)
	}

	models, err := api.DiscoverModels(dir)
	if err != nil {
		return "", err
	}
	switch len(models) {
	case 0:
		return "", fmt.Errorf("no %s models found in %s", api.ModelExt, dir)
	case 1:
		return models[0], nil
	default:
		return "", fmt.Errorf("multiple models found in %s; set --model", dir)
	}
}

// resolvePackOut derives the output path of pack: the --output flag, or the
// description file name with a .cmf extension next to it.
func resolvePackOut(inPath, outFlag string) (string, error) {
	outFlag = strings.TrimSpace(outFlag)
	if outFlag != "" {
		outPath := filepath.Clean(outFlag)
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return "", err
		}
		return outPath, nil
	}
	base := filepath.Base(filepath.Clean(inPath))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid input path: %q", inPath)
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(inPath), stem+api.ModelExt), nil
}
