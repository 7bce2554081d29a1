package deepgram

type deepgramVoice string

// Voice is an Aura voice model name.
type Voice = deepgramVoice

const (
	VoiceAsteria deepgramVoice = "aura-2-asteria-en"
	VoiceLuna    deepgramVoice = "aura-2-luna-en"
	VoiceStella  deepgramVoice = "aura-2-stella-en"
	VoiceAthena  deepgramVoice = "aura-2-athena-en"
	VoiceHera    deepgramVoice = "aura-2-hera-en"
	VoiceOrion   deepgramVoice = "aura-2-orion-en"
	VoiceArcas   deepgramVoice = "aura-2-arcas-en"
	VoiceHelios  deepgramVoice = "aura-2-helios-en"
	VoiceZeus    deepgramVoice = "aura-2-zeus-en"

	defaultVoice = VoiceAsteria
)

func GetAvailableVoices() []deepgramVoice {
	return []deepgramVoice{
		VoiceAsteria,
		VoiceLuna,
		VoiceStella,
		VoiceAthena,
		VoiceHera,
		VoiceOrion,
		VoiceArcas,
		VoiceHelios,
		VoiceZeus,
	}
}
