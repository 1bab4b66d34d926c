package graph

import (
	"fmt"
	"maps"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/gpucore"
)

// presentPassName is the target name of the final copy to the surface.
// User passes may not take it.
const presentPassName = "$present"

// validate checks a pass list against the fixed images and the output tag.
// Passes are checked in declared order and the first violation is
// returned, so the same configuration always reports the same error.
func validate(passes []Pass, fixed map[string]Image, output string) error {
	for _, tag := range slices.Sorted(maps.Keys(fixed)) {
		if err := validateFixed(tag, fixed[tag]); err != nil {
			return err
		}
	}

	// First producer of every pass-created tag.
	producer := make(map[string]int)
	for i, p := range passes {
		for _, spec := range p.Creates {
			if _, ok := producer[spec.Tag]; !ok {
				producer[spec.Tag] = i
			}
		}
	}

	names := make(map[string]bool, len(passes))
	for i, p := range passes {
		switch {
		case p.Name == "":
			return &ConfigError{Kind: ErrEmptyPassName, Detail: fmt.Sprintf("pass %d", i)}
		case names[p.Name] || p.Name == presentPassName:
			return &ConfigError{Kind: ErrDuplicatePass, Pass: p.Name}
		}
		names[p.Name] = true

		if err := validateCreates(i, p, fixed, producer); err != nil {
			return err
		}

		for _, tag := range p.Needs {
			if _, ok := fixed[tag]; ok {
				continue
			}
			j, ok := producer[tag]
			switch {
			case !ok:
				return &ConfigError{Kind: ErrUnresolvedTag, Pass: p.Name, Tag: tag}
			case j == i:
				return &ConfigError{Kind: ErrOrderViolation, Pass: p.Name, Tag: tag, Detail: "pass samples its own attachment"}
			case j > i:
				return &ConfigError{Kind: ErrOrderViolation, Pass: p.Name, Tag: tag,
					Detail: fmt.Sprintf("produced later by %q", passes[j].Name)}
			}
		}
	}

	if _, ok := fixed[output]; ok {
		return nil
	}
	if _, ok := producer[output]; !ok {
		return &ConfigError{Kind: ErrUnknownOutput, Tag: output}
	}
	return nil
}

func validateFixed(tag string, img Image) error {
	switch {
	case tag == "":
		return &ConfigError{Kind: ErrInvalidImage, Detail: "fixed image with empty tag"}
	case img.Texture == gpucore.InvalidID:
		return &ConfigError{Kind: ErrInvalidImage, Tag: tag, Detail: "fixed image has no texture"}
	case img.Format == gputypes.TextureFormatUndefined:
		return &ConfigError{Kind: ErrInvalidImage, Tag: tag, Detail: "fixed image has no format"}
	case img.Width == 0 || img.Height == 0:
		return &ConfigError{Kind: ErrInvalidImage, Tag: tag, Detail: "fixed image has zero size"}
	}
	return nil
}

func validateCreates(i int, p Pass, fixed map[string]Image, producer map[string]int) error {
	if len(p.Creates) == 0 {
		return &ConfigError{Kind: ErrInvalidImage, Pass: p.Name, Detail: "pass creates no images"}
	}
	seen := make(map[string]bool, len(p.Creates))
	depth := ""
	for _, spec := range p.Creates {
		if spec.Tag == "" {
			return &ConfigError{Kind: ErrInvalidImage, Pass: p.Name, Detail: "image with empty tag"}
		}
		if _, ok := fixed[spec.Tag]; ok || seen[spec.Tag] || producer[spec.Tag] != i {
			return &ConfigError{Kind: ErrDuplicateProducer, Pass: p.Name, Tag: spec.Tag}
		}
		seen[spec.Tag] = true

		switch {
		case spec.Format == gputypes.TextureFormatUndefined:
			return &ConfigError{Kind: ErrInvalidImage, Pass: p.Name, Tag: spec.Tag, Detail: "no format"}
		case spec.Sizing != SizeFixed && spec.Sizing != SizeWindowRelative:
			return &ConfigError{Kind: ErrInvalidImage, Pass: p.Name, Tag: spec.Tag, Detail: "no sizing mode"}
		case spec.Sizing == SizeFixed && (spec.Width == 0 || spec.Height == 0):
			return &ConfigError{Kind: ErrInvalidImage, Pass: p.Name, Tag: spec.Tag, Detail: "fixed image has zero size"}
		}
		first := p.Creates[0]
		if spec.Sizing != first.Sizing ||
			(spec.Sizing == SizeFixed && (spec.Width != first.Width || spec.Height != first.Height)) {
			return &ConfigError{Kind: ErrInvalidImage, Pass: p.Name, Tag: spec.Tag,
				Detail: fmt.Sprintf("attachment size differs from %q", first.Tag)}
		}
		if gpucore.IsDepthFormat(spec.Format) {
			if depth != "" {
				return &ConfigError{Kind: ErrInvalidImage, Pass: p.Name, Tag: spec.Tag,
					Detail: fmt.Sprintf("second depth attachment after %q", depth)}
			}
			depth = spec.Tag
		}
	}
	return nil
}
