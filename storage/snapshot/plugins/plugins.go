package plugins

import (
	"github.com/jrife/fakeconsul/storage/snapshot"
	"github.com/jrife/fakeconsul/storage/snapshot/plugins/bbolt"
	"github.com/jrife/fakeconsul/storage/snapshot/plugins/file"
)

var plugins []snapshot.Plugin

func init() {
	plugins = append(plugins, file.Plugins()...)
	plugins = append(plugins, bbolt.Plugins()...)
}

// Plugin returns the plugin whose name matches the given name.
// It returns nil if no such plugin is found.
func Plugin(name string) snapshot.Plugin {
	for _, plugin := range plugins {
		if plugin.Name() == name {
			return plugin
		}
	}

	return nil
}

// Plugins lists all the plugins that are available
func Plugins() []snapshot.Plugin {
	return plugins
}

// Names lists the names of all the plugins that are available
func Names() []string {
	names := make([]string, len(plugins))

	for i, plugin := range plugins {
		names[i] = plugin.Name()
	}

	return names
}
