package config

import "gopkg.in/yaml.v3"

const exampleHeader = "# Postboard configuration example\n# Copy this file to config.yaml and customize as needed.\n# Secrets are read from the environment (" + EnvS3AccessKeyID + ", " + EnvS3SecretKey + ").\n\n"

// ExampleYAML renders the default configuration as a commented YAML document.
func ExampleYAML() ([]byte, error) {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return nil, err
	}
	return append([]byte(exampleHeader), data...), nil
}
