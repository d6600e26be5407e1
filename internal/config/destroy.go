package config

import "github.com/tauraamui/xerror"

func destroy() error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	if err := fs.Remove(path); err != nil {
		return xerror.Errorf("unable to remove config file: %w", err)
	}

	return nil
}
