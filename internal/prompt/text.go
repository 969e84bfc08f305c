package prompt

// Prompt templates sent to the language model. All user-facing text is
// Chinese; the backend prompt vocabulary stays English (see state.PresetStore).

const lyricsTemplate = `你是一位专业的中文歌词创作人。请根据用户需求创作一首歌词。

用户需求:
- 主题: %s
- 风格: %s
- 情绪: %s
- 时长: %s秒
- 特殊要求: %s

风格指导:
%s

创作要求:
1. 歌词要有真实的情感表达，贴近主题
2. 语言要生动有力，有画面感
3. 节奏要符合%s风格
4. 考虑到%s秒的时长，控制歌词长度
5. 避免使用过于复杂或生僻的词汇
6. 要有层次感，包含主歌、副歌等结构

请直接输出歌词内容，不要加其他说明:`

const revisionTemplate = `用户对以下歌词提出了修改意见，请根据反馈进行调整：

原歌词:
%s

用户反馈:
%s

请根据用户的反馈对歌词进行适当修改，保持歌词的整体结构和韵律，但要满足用户的要求。

修改后的歌词:`

const moodTemplate = `根据用户描述的音乐主题，提取出主要的情绪关键词。

用户主题: %s

请从以下情绪中选择最符合的1-2个，用逗号分隔：
悲伤, 愤怒, 快乐, 温柔, 激昂, 忧郁, 浪漫, 怀旧, 励志, 平静, 狂野, 梦幻

如果以上都不合适，请直接用1-2个形容词概括情绪。

情绪:`

// Canned lyric bodies served when the language model is unreachable.

const fallbackMelancholic = `[Intro]
夜深了，思绪又开始泛滥
这些年的得失，在心里翻转

[Verse]
走过这么多路，回头看那些伤
有些痛不会忘，像刻在心上的疤
曾经以为时间会带走所有难过
现在才发现，有些记忆越久越深刻

[Chorus]
伤感不是软弱，是成长的代价
每一次跌倒，都让我更懂得珍惜
虽然心会痛，但我还在这里
用音乐诉说，那些说不出的话

[Outro]
伤感也是一种美
让我学会了更深的体会`

const fallbackEnergetic = `[Intro]
点燃心中的火焰
这一刻，全世界都听见我的声音

[Verse]
不服输的心永远年轻
每一次挑战都让我更加坚定
汗水是我最好的证明
成功的路上从不缺少拼搏的身影

[Chorus]
热血在沸腾，梦想在召唤
没有什么能阻挡我前进的步伐
燃烧吧青春，释放吧力量
这是属于我们的时代

[Outro]
永不熄灭的火
照亮前行的路`

const fallbackDefault = `[Intro]
这是我的声音，这是我的故事

[Verse]
生活就像一场说唱
有高有低，有快有慢
重要的是保持自己的节拍
在这个世界上留下属于自己的印记

[Chorus]
用音乐表达内心的想法
让每一个音符都有灵魂
这就是说唱的魅力
真实而有力量

[Outro]
音乐永不停息
我们的故事还在继续`
