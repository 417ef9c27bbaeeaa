package domain

import "strings"

// languageExtensions 统计代码行数时，每种语言计入的文件后缀
var languageExtensions = map[string][]string{
	"java":       {".java"},
	"python":     {".py", ".pyx", ".pyw"},
	"go":         {".go"},
	"javascript": {".js", ".jsx", ".mjs", ".cjs"},
	"typescript": {".ts", ".tsx"},
	"c":          {".c", ".h"},
	"c++":        {".cpp", ".cc", ".cxx", ".hpp", ".hh", ".hxx"},
	"cpp":        {".cpp", ".cc", ".cxx", ".hpp", ".hh", ".hxx"},
	"c#":         {".cs"},
	"csharp":     {".cs"},
	"ruby":       {".rb"},
	"kotlin":     {".kt", ".kts"},
	"scala":      {".scala"},
	"rust":       {".rs"},
	"php":        {".php"},
}

// ExtensionsFor 返回语言对应的文件后缀，未知语言返回 nil
func ExtensionsFor(language string) []string {
	return languageExtensions[strings.ToLower(language)]
}

// MatchesLanguage 判断文件路径是否属于该语言
func MatchesLanguage(path, language string) bool {
	for _, ext := range ExtensionsFor(language) {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// linguistAliases 配置里允许的别名 -> GitHub 语言统计里使用的名字
var linguistAliases = map[string]string{
	"cpp":    "c++",
	"csharp": "c#",
}

// SameLanguage 判断 GitHub 语言统计里的名字是否就是配置的语言，不区分大小写
func SameLanguage(linguist, configured string) bool {
	c := strings.ToLower(configured)
	if alias, ok := linguistAliases[c]; ok {
		c = alias
	}
	return strings.ToLower(linguist) == c
}
