package gen_test

import (
	"testing"

	"github.com/freshmk-build/freshmk/internal/builder/gen"
	"github.com/stretchr/testify/assert"
)

func TestRuleString(t *testing.T) {
	r := gen.Rule{
		Target:  "./debug/main.o",
		Prereqs: []string{"./src/main.c", "src/main.c", "src/lemon.h"},
		Recipe:  []string{"$(CC) $(CFLAGS) -c -o $@ $<"},
	}

	assert.Equal(t,
		"./debug/main.o: ./src/main.c src/main.c src/lemon.h\n\t$(CC) $(CFLAGS) -c -o $@ $<\n\n",
		r.String())
}

func TestRuleStringNoPrereqs(t *testing.T) {
	r := gen.Rule{
		Target: "debug_deps",
		Recipe: []string{"@mkdir -p ./debug/"},
	}

	assert.Equal(t, "debug_deps:\n\t@mkdir -p ./debug/\n\n", r.String())
}

func TestRuleStringNoRecipe(t *testing.T) {
	r := gen.Rule{Target: "all", Prereqs: []string{"debug"}}

	assert.Equal(t, "all: debug\n\n", r.String())
}

func TestScanObjects(t *testing.T) {
	block := "./debug/a.o: ./a.c a.c a.h\n" +
		"\t$(CC) $(CFLAGS) -c -o $@ $<\n\n" +
		"./debug/b.o: ./b.c b.c\n" +
		"\t$(CC) $(CFLAGS) -c -o $@ $<\n\n"

	assert.Equal(t, []string{"./debug/a.o", "./debug/b.o"}, gen.ScanObjects(block))
}

func TestScanObjectsIgnoresRecipeText(t *testing.T) {
	// recipe lines and plain object mentions must not be picked up
	block := "./debug/a.o: ./a.c other.o\n" +
		"\t$(CC) $(CFLAGS) -c -o $@ $<\n\n" +
		"./debug/lemon: ./debug/a.o\n" +
		"\t$(CC) -o $@ $^ -lpthread\n\n"

	assert.Equal(t, []string{"./debug/a.o"}, gen.ScanObjects(block))
}

func TestScanObjectsEmpty(t *testing.T) {
	assert.Empty(t, gen.ScanObjects("clean:\n\t@rm -rf ./debug/\n"))
}
