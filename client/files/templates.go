package files

import "collabroom/internal/entity"

var defaultTemplates = map[string]string{
	entity.LanguagePython:     "# New Python file\n\nprint(\"Hello, world!\")\n",
	entity.LanguageJavaScript: "// New JavaScript file\n\nconsole.log(\"Hello, world!\");\n",
	entity.LanguageTypeScript: "// New TypeScript file\n\nconsole.log(\"Hello, world!\");\n",
	entity.LanguageGo:         "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"Hello, world!\")\n}\n",
	entity.LanguageJava:       "public class Main {\n    public static void main(String[] args) {\n        System.out.println(\"Hello, world!\");\n    }\n}\n",
	entity.LanguageCpp:        "#include <iostream>\n\nint main() {\n    std::cout << \"Hello, world!\" << std::endl;\n    return 0;\n}\n",
}

// DefaultTemplate is the starter content a freshly created file opens with.
func DefaultTemplate(language string) string {
	return defaultTemplates[language]
}
