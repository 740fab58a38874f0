package config

import (
	"path/filepath"

	"github.com/spf13/viper"
)

// DirName is the per-project settings directory.
const DirName = ".stackrag"

// DefaultSystemPrompt tells a local model how to emit structured blocks.
const DefaultSystemPrompt = `You are a financial analyst assistant.
When a chart helps, emit it as <ChartData>{"type":"bar|line|pie|composed","data":[{"name":"...","value":0}],"data_keys":{"value":"Label"}}</ChartData>.
When citing a document page, emit <PDFNav>{"documentId":"...","filename":"...","page":1,"context":"..."}</PDFNav>.
Keep the JSON inside the tags valid and on a single line.`

// BaseSettingsDir returns the directory holding the active settings file.
func BaseSettingsDir() string {
	if configPath := viper.GetString("config.path"); configPath != "" {
		return configPath
	}

	if used := viper.ConfigFileUsed(); used != "" {
		return filepath.Dir(used)
	}
	return DirName
}

func BuildSettingsPath(target string) string {
	return filepath.Join(BaseSettingsDir(), target)
}
