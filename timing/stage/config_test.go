package stage_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/jpegsim/timing/stage"
)

var _ = Describe("Config", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "stage-config-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	It("should have sensible defaults", func() {
		config := stage.DefaultConfig()

		Expect(config.Name).To(Equal("PE"))
		Expect(config.CyclesToProcess).To(Equal(1))
		Expect(config.Pipelined).To(BeFalse())
		Expect(config.Buffered).To(Equal(stage.BufferNone))
		Expect(config.Validate()).To(Succeed())
	})

	Describe("ParseBuffered", func() {
		It("should map booleans to both sides or none", func() {
			Expect(stage.ParseBuffered(true)).To(Equal(stage.BufferBoth))
			Expect(stage.ParseBuffered(false)).To(Equal(stage.BufferNone))
		})

		It("should accept a single side", func() {
			Expect(stage.ParseBuffered("input")).To(Equal(stage.BufferInput))
			Expect(stage.ParseBuffered("output")).To(Equal(stage.BufferOutput))
		})

		It("should accept a typed mode", func() {
			Expect(stage.ParseBuffered(stage.BufferBoth)).To(Equal(stage.BufferBoth))
		})

		It("should reject anything else", func() {
			_, err := stage.ParseBuffered("sideways")
			Expect(errors.Is(err, stage.ErrConfiguration)).To(BeTrue())

			_, err = stage.ParseBuffered(stage.BufferMode("sideways"))
			Expect(errors.Is(err, stage.ErrConfiguration)).To(BeTrue())
		})
	})

	Describe("BufferMode", func() {
		It("should tell which sides are buffered", func() {
			Expect(stage.BufferBoth.HasInput()).To(BeTrue())
			Expect(stage.BufferBoth.HasOutput()).To(BeTrue())
			Expect(stage.BufferInput.HasOutput()).To(BeFalse())
			Expect(stage.BufferOutput.HasInput()).To(BeFalse())
			Expect(stage.BufferNone.HasInput()).To(BeFalse())
		})

		It("should decode a JSON bool", func() {
			var c stage.Config
			Expect(json.Unmarshal([]byte(`{"buffered": true}`), &c)).To(Succeed())
			Expect(c.Buffered).To(Equal(stage.BufferBoth))
		})

		It("should reject an unknown JSON mode", func() {
			var c stage.Config
			err := json.Unmarshal([]byte(`{"buffered": "sideways"}`), &c)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Validate", func() {
		It("should reject zero cycles", func() {
			config := stage.DefaultConfig()
			config.CyclesToProcess = 0

			var cfgErr *stage.ConfigurationError
			Expect(errors.As(config.Validate(), &cfgErr)).To(BeTrue())
			Expect(cfgErr.Field).To(Equal("cycles_to_process"))
		})

		It("should reject a block with a zero dimension", func() {
			config := stage.DefaultConfig()
			config.BlockSize = &stage.BlockSize{Rows: 8, Cols: 0}

			Expect(errors.Is(config.Validate(), stage.ErrConfiguration)).To(BeTrue())
		})

		It("should reject an unknown mode", func() {
			config := stage.DefaultConfig()
			config.Buffered = "sideways"

			Expect(config.Validate()).To(HaveOccurred())
		})

		DescribeTable("stage names",
			func(name string, valid bool) {
				config := stage.DefaultConfig()
				config.Name = name

				err := config.Validate()
				if valid {
					Expect(err).NotTo(HaveOccurred())
					return
				}

				var cfgErr *stage.ConfigurationError
				Expect(errors.As(err, &cfgErr)).To(BeTrue())
				Expect(cfgErr.Field).To(Equal("name"))
			},
			Entry("capitalized", "DCT", true),
			Entry("indexed", "DCT[1]", true),
			Entry("hierarchical", "Encoder.Quant", true),
			Entry("empty uses the default", "", true),
			Entry("lower case", "dct", false),
			Entry("underscore", "Color_Conv", false),
			Entry("dash", "Run-Length", false),
			Entry("empty element", "Encoder..DCT", false),
			Entry("unmatched bracket", "DCT[1", false),
			Entry("non-integer index", "DCT[a]", false),
		)
	})

	Describe("Load and save", func() {
		It("should load a JSON file", func() {
			path := filepath.Join(tempDir, "pe.json")
			content := `{
				"name": "DCT",
				"cycles_to_process": 4,
				"pipelined": true,
				"block_size": {"rows": 8, "cols": 8},
				"buffered": "input"
			}`
			Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())

			config, err := stage.LoadConfig(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(config.Name).To(Equal("DCT"))
			Expect(config.CyclesToProcess).To(Equal(4))
			Expect(config.Pipelined).To(BeTrue())
			Expect(*config.BlockSize).To(Equal(stage.BlockSize{Rows: 8, Cols: 8}))
			Expect(config.Buffered).To(Equal(stage.BufferInput))
		})

		It("should load a TOML file", func() {
			path := filepath.Join(tempDir, "pe.toml")
			content := "name = \"Quant\"\n" +
				"cycles_to_process = 3\n" +
				"buffered = true\n" +
				"\n[block_size]\nrows = 8\ncols = 8\n"
			Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())

			config, err := stage.LoadConfig(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(config.Name).To(Equal("Quant"))
			Expect(config.CyclesToProcess).To(Equal(3))
			Expect(config.Buffered).To(Equal(stage.BufferBoth))
			Expect(config.BlockSize.Samples()).To(Equal(64))
		})

		It("should keep defaults for missing fields", func() {
			path := filepath.Join(tempDir, "partial.json")
			Expect(os.WriteFile(path, []byte(`{"cycles_to_process": 2}`), 0644)).To(Succeed())

			config, err := stage.LoadConfig(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(config.Name).To(Equal("PE"))
			Expect(config.Buffered).To(Equal(stage.BufferNone))
		})

		It("should save and reload through TOML", func() {
			path := filepath.Join(tempDir, "saved.toml")
			config := stage.DefaultConfig()
			config.CyclesToProcess = 6
			config.Buffered = stage.BufferOutput
			config.BufferCapacity = 4

			Expect(config.SaveConfig(path)).To(Succeed())
			loaded, err := stage.LoadConfig(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(config))
		})

		It("should save and reload through JSON", func() {
			path := filepath.Join(tempDir, "saved.json")
			config := stage.DefaultConfig()
			config.Pipelined = true
			config.BlockSize = &stage.BlockSize{Rows: 4, Cols: 2}

			Expect(config.SaveConfig(path)).To(Succeed())
			loaded, err := stage.LoadConfig(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(config))
		})

		It("should fail on a missing file", func() {
			_, err := stage.LoadConfig(filepath.Join(tempDir, "missing.json"))
			Expect(err).To(HaveOccurred())
		})

		It("should fail on malformed content", func() {
			path := filepath.Join(tempDir, "bad.json")
			Expect(os.WriteFile(path, []byte("{not json"), 0644)).To(Succeed())

			_, err := stage.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})
	})

	It("should deep copy on clone", func() {
		config := stage.DefaultConfig()
		config.BlockSize = &stage.BlockSize{Rows: 8, Cols: 8}

		clone := config.Clone()
		clone.BlockSize.Rows = 16
		clone.CyclesToProcess = 9

		Expect(config.BlockSize.Rows).To(Equal(8))
		Expect(config.CyclesToProcess).To(Equal(1))
	})
})
