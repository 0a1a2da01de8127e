package config

import (
	"sort"

	"gopkg.in/ini.v1"
)

// ReadInventory loads an INI inventory. Each section is a group and every key
// value in it is a hostname.
func ReadInventory(filePath string) (map[string][]string, error) {
	cfg, err := ini.Load(filePath)
	if err != nil {
		return nil, err
	}

	hosts := make(map[string][]string)

	for _, section := range cfg.Sections() {
		name := section.Name()
		for _, key := range section.Keys() {
			hosts[name] = append(hosts[name], key.String())
		}
	}

	return hosts, nil
}

// Hostnames flattens an inventory into a sorted list without duplicates.
func Hostnames(inventory map[string][]string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, hosts := range inventory {
		for _, h := range hosts {
			if h == "" || seen[h] {
				continue
			}
			seen[h] = true
			names = append(names, h)
		}
	}
	sort.Strings(names)
	return names
}
