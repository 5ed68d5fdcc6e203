package prompt

import "math/rand/v2"

// Style is a named style preset appended to enhanced prompts.
type Style struct {
	Name string
	Text string
}

// Styles lists the presets the static enhancer picks from.
var Styles = []Style{
	{"Shōnen Anime", "Shōnen Anime, action-oriented, Akira Toriyama (Dragon Ball), youthful, vibrant, dynamic"},
	{"Shōjo Anime", "Shōjo Anime, Romantic, Naoko Takeuchi (Sailor Moon), emotional, detailed backgrounds, soft colors"},
	{"Seinen Anime", "Seinen Anime, Mature, Hajime Isayama (Attack on Titan), complex themes, realistic, detailed"},
	{"Abstract Expressionism", "Abstract Expressionism, Abstract, Jackson Pollock, spontaneous, dynamic, emotional"},
	{"Art Nouveau", "Art Nouveau, Decorative, Alphonse Mucha, organic forms, intricate, flowing"},
	{"Baroque", "Baroque, Dramatic, Caravaggio, high contrast, ornate, realism"},
	{"Classical", "Classical, Proportionate, Leonardo da Vinci, balanced, harmonious, detailed"},
	{"Contemporary", "Contemporary, Innovative, Ai Weiwei, conceptual, diverse mediums, social commentary"},
	{"Cubism", "Cubism, Geometric, Pablo Picasso, multi-perspective, abstract, fragmented"},
	{"Fantasy", "Fantasy, Imaginative, J.R.R. Tolkien, mythical creatures, dreamlike, detailed"},
	{"Film Noir", "Film Noir, Monochromatic, Orson Welles, high contrast, dramatic shadows, mystery"},
	{"Impressionism", "Impressionism, Painterly, Claude Monet, light effects, outdoor scenes, everyday life"},
	{"Minimalist", "Minimalist, Simplified, Agnes Martin, bare essentials, geometric, neutral colors"},
	{"Modern", "Modern, Avant-garde, Piet Mondrian, non-representational, experimental, abstract"},
	{"Neo-Gothic", "Neo-Gothic, Dark, H.R. Giger, intricate detail, macabre, architectural elements"},
	{"Pixel Art", "Pixel Art, Retro, Shigeru Miyamoto, 8-bit, digital, geometric"},
	{"Pop Art", "Pop Art, Colorful, Andy Warhol, mass culture, ironic, bold"},
	{"Post-Impressionism", "Post-Impressionism, Expressive, Vincent Van Gogh, symbolic, bold colors, heavy brushstrokes"},
	{"Renaissance", "Renaissance, Realistic, Michelangelo, perspective, humanism, religious themes"},
	{"Retro / Vintage", "Retro / Vintage, Nostalgic, Norman Rockwell, past styles, soft colors, romantic"},
	{"Romanticism", "Romanticism, Emotional, Caspar David Friedrich, nature, dramatic, imaginative"},
	{"Surrealism", "Surrealism, Dreamlike, Salvador Dalí, irrational, bizarre, subconscious"},
	{"Steampunk", "Steampunk, Futuristic, H.G. Wells, industrial, Victorian, mechanical"},
	{"Street Art", "Street Art, Public, Keith Haring, social commentary, bold colors, mural"},
	{"Watercolor", "Watercolor, Translucent, J.M.W. Turner, lightness, fluid, landscape"},
}

// RandomStyle picks a preset. A nil rng uses the global source.
func RandomStyle(rng *rand.Rand) Style {
	if rng == nil {
		return Styles[rand.IntN(len(Styles))]
	}
	return Styles[rng.IntN(len(Styles))]
}
