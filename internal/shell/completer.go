package shell

import (
	"sort"

	"github.com/chzyer/readline"
)

func (s *Shell) completer() *readline.PrefixCompleter {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]readline.PrefixCompleterInterface, 0, len(names)+1)
	for _, name := range names {
		if name == "actions" {
			items = append(items, readline.PcItem(name, readline.PcItemDynamic(s.categoryNames)))
			continue
		}
		items = append(items, readline.PcItem(name))
	}
	items = append(items, readline.PcItemDynamic(s.keywordNames))
	return readline.NewPrefixCompleter(items...)
}

func (s *Shell) keywordNames(string) []string {
	descs := s.runner.Registry().List("")
	out := make([]string, len(descs))
	for i, d := range descs {
		out[i] = d.Keyword
	}
	return out
}

func (s *Shell) categoryNames(string) []string {
	return s.runner.Registry().Categories()
}
